package search

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// stubSim is a Simulator returning a fixed reward per call.
type stubSim struct {
	reward float64
	calls  int
}

func (s *stubSim) Simulate(_ context.Context, st *State, _ int) (float64, []Outcome, error) {
	s.calls++
	return s.reward, []Outcome{{SMILES: st.SMILES(), Canonical: st.SMILES(), Valid: true, Reward: s.reward}}, nil
}

// captureRecorder keeps every record in memory.
type captureRecorder struct {
	recs []MoleculeRecord
}

func (r *captureRecorder) Record(_ context.Context, rec MoleculeRecord) error {
	r.recs = append(r.recs, rec)
	return nil
}

func (r *captureRecorder) Close() error { return nil }

// captureObserver counts observer callbacks.
type captureObserver struct {
	NopObserver
	iterations int
	evicted    int
	stalls     []string
}

func (o *captureObserver) IterationCompleted(int, int) { o.iterations++ }
func (o *captureObserver) NodesEvicted(count int)      { o.evicted += count }
func (o *captureObserver) StallDetected(kind string)   { o.stalls = append(o.stalls, kind) }

func testSearchConfig(gens int) config.SearchConfig {
	return config.SearchConfig{
		CVal:                              1.0,
		ThresholdType:                     config.ThresholdGenerationNum,
		GenerationNum:                     gens,
		SimulationNum:                     1,
		ExpansionThreshold:                0.995,
		FlushThreshold:                    -1,
		InfiniteLoopThresholdForSelection: 10,
		InfiniteLoopThresholdForExpansion: 2,
		Policy:                            "ucb1",
	}
}

// uniformOverThree spreads all probability mass evenly over the end token and
// the C and O tokens of the test vocabulary.
func uniformOverThree(v *Vocabulary) func(ids []int) []float32 {
	return func([]int) []float32 {
		out := make([]float32, v.Size())
		third := float32(1) / 3
		out[v.EndID()] = third
		out[2] = third
		out[3] = third
		return out
	}
}

func newTestEngine(t *testing.T, cfg config.SearchConfig, model seqmodel.Model, sim Simulator, mutate func(*EngineParams)) *Engine {
	t.Helper()
	v := testVocab(t)
	p := EngineParams{
		Config:    cfg,
		RunID:     "test-run",
		Vocab:     v,
		Model:     model,
		Simulator: sim,
		PCG:       rand.NewPCG(1, 2),
		Logger:    logging.NewNopLogger(),
	}
	if mutate != nil {
		mutate(&p)
	}
	e, err := NewEngine(p)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20}
	sim := &stubSim{reward: 0.5}

	_, err := NewEngine(EngineParams{Config: testSearchConfig(1), Vocab: v, Model: model, Simulator: sim})
	assert.Error(t, err, "missing random source")

	bad := &seqmodel.FakeModel{Vocab: v.Size() + 1, MaxLen: 20}
	_, err = NewEngine(EngineParams{Config: testSearchConfig(1), Vocab: v, Model: bad, Simulator: sim, PCG: rand.NewPCG(1, 2)})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelShapeMismatch))

	cfg := testSearchConfig(1)
	cfg.Policy = "bogus"
	_, err = NewEngine(EngineParams{Config: cfg, Vocab: v, Model: model, Simulator: sim, PCG: rand.NewPCG(1, 2)})
	assert.Error(t, err)
}

func TestEngine_ExpansionFollowsCumulativeMass(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	sim := &stubSim{reward: 0.5}
	e := newTestEngine(t, testSearchConfig(1), model, sim, nil)

	require.NoError(t, e.Run(context.Background()))

	// Three tokens share the mass; the end token counts toward the cumulative
	// threshold but never becomes a child.
	tr := e.Tree()
	children := tr.Children(tr.Root())
	require.Len(t, children, 2)
	tokens := []int{tr.Token(children[0]), tr.Token(children[1])}
	assert.NotContains(t, tokens, v.EndID())
	assert.NotContains(t, tokens, v.BeginID())
	assert.ElementsMatch(t, []int{2, 3}, tokens)

	// Every new child was simulated exactly once and backpropagated.
	assert.Equal(t, 2, sim.calls)
	for _, c := range children {
		assert.Equal(t, 1, tr.Visits(c))
		assert.Equal(t, 0.5, tr.TotalReward(c))
	}
	assert.Equal(t, 2, tr.Visits(tr.Root()))
}

func TestEngine_GenerationBudgetIsExact(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	obs := &captureObserver{}
	e := newTestEngine(t, testSearchConfig(5), model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.Observer = obs
	})

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 5, e.Budget().Generations())
	assert.Equal(t, 5, obs.iterations)
}

func TestEngine_RecordsOutcomesWithGenerations(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	rec := &captureRecorder{}
	e := newTestEngine(t, testSearchConfig(3), model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.Recorder = rec
	})

	require.NoError(t, e.Run(context.Background()))
	require.NotEmpty(t, rec.recs)
	for _, r := range rec.recs {
		assert.Equal(t, "test-run", r.RunID)
		assert.GreaterOrEqual(t, r.Generation, 1)
		assert.LessOrEqual(t, r.Generation, 3)
		assert.Equal(t, 0.5, r.Reward)
	}
}

func TestEngine_ExhaustedModelStopsRun(t *testing.T) {
	v := testVocab(t)
	// The model assigns no mass to anything: expansion can never succeed, the
	// root gets marked exhausted, and the run stops cleanly at 0 generations.
	dead := func([]int) []float32 { return make([]float32, v.Size()) }
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: dead}
	obs := &captureObserver{}
	e := newTestEngine(t, testSearchConfig(100), model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.Observer = obs
	})

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 0, e.Budget().Generations())
	assert.True(t, e.Tree().Exhausted(e.Tree().Root()))
	assert.Contains(t, obs.stalls, "expansion")
}

func TestEngine_AlternatingDeadEndsExhaustRoot(t *testing.T) {
	v := testVocab(t)
	// max length 3 makes every grandchild terminal by length cap, so after
	// three completed generations selection can only land on dead ends.  Each
	// sentinel backpropagation flips the argmax to a sibling dead end; the
	// per-node stall counts must still accumulate until exhaustion cascades to
	// the root and the run stops well short of its generation budget.
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 3, Fn: uniformOverThree(v)}
	cfg := testSearchConfig(10)
	cfg.InfiniteLoopThresholdForSelection = 5
	obs := &captureObserver{}
	e := newTestEngine(t, cfg, model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.Observer = obs
	})

	require.NoError(t, e.Run(context.Background()))
	assert.True(t, e.Tree().Exhausted(e.Tree().Root()))
	assert.Less(t, e.Budget().Generations(), 10)
	assert.Contains(t, obs.stalls, "selection")
}

func TestEngine_ContextCancellation(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	e := newTestEngine(t, testSearchConfig(1000), model, &stubSim{reward: 0.5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 0, e.Budget().Generations())
}

func TestEngine_FlushThresholdEvicts(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	cfg := testSearchConfig(1)
	cfg.FlushThreshold = 0.5
	obs := &captureObserver{}
	// Every rollout scores the sentinel, so the expanded subtree's mean falls
	// below the flush threshold immediately.
	e := newTestEngine(t, cfg, model, &stubSim{reward: -1}, func(p *EngineParams) {
		p.Observer = obs
	})

	require.NoError(t, e.Run(context.Background()))
	tr := e.Tree()
	assert.Equal(t, 1, tr.Size(), "low-mean subtree evicted down to the root")
	assert.Empty(t, tr.Children(tr.Root()))
	assert.False(t, tr.Expanded(tr.Root()), "evicted node is expandable again")
	assert.Greater(t, obs.evicted, 0)
}

func TestEngine_SeededRootState(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	cfg := testSearchConfig(1)
	cfg.InputSMILES = "CO"
	rec := &captureRecorder{}
	e := newTestEngine(t, cfg, model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.Recorder = rec
	})

	require.NoError(t, e.Run(context.Background()))
	require.NotEmpty(t, rec.recs)
	for _, r := range rec.recs {
		assert.True(t, strings.HasPrefix(r.SMILES, "CO"), "generated sequences extend the input prefix, got %q", r.SMILES)
	}
}

func TestEngine_CheckpointResumeContinuesRun(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	path := filepath.Join(t.TempDir(), "resume.ckpt")
	mgr := NewCheckpointManager(path, nil, logging.NewNopLogger())

	first := newTestEngine(t, testSearchConfig(3), model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.Checkpoints = mgr
		p.SaveCheckpoints = true
		p.CheckpointInterval = 1
	})
	require.NoError(t, first.Run(context.Background()))
	firstRecords := first.Tree().Export()

	snap, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Generations)

	second := newTestEngine(t, testSearchConfig(5), model, &stubSim{reward: 0.5}, func(p *EngineParams) {
		p.PCG = rand.NewPCG(99, 98) // overwritten by the snapshot's RNG state
	})
	require.NoError(t, second.Resume(snap))
	assert.Equal(t, 3, second.Budget().Generations())
	assert.Equal(t, firstRecords, second.Tree().Export(), "resumed tree is structurally identical")

	require.NoError(t, second.Run(context.Background()))
	assert.Equal(t, 5, second.Budget().Generations(), "resumed run completes only the remaining budget")
}

func TestEngine_ResumeRejectsCorruptSnapshot(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 20, Fn: uniformOverThree(v)}
	e := newTestEngine(t, testSearchConfig(1), model, &stubSim{reward: 0.5}, nil)

	err := e.Resume(&Snapshot{Nodes: []NodeRecord{{Parent: 3}}, RNG: []byte{1}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckpointCorrupt))
}
