package search

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Engine orchestrates the MCTS loop: SELECT → EXPAND → SIMULATE → SCORE →
// BACKPROPAGATE, gated by the budget controller.  The engine is the single
// writer of the tree; simulators only ever see immutable States.
type Engine struct {
	cfg    config.SearchConfig
	runID  string
	vocab  *Vocabulary
	model  seqmodel.Model
	policy Policy
	sim    Simulator
	budget *Budget

	tree      *Tree
	rootState *State
	maxLen    int

	ckpt         *CheckpointManager
	saveCkpt     bool
	ckptInterval int

	recorder Recorder
	obs      Observer
	logger   logging.Logger

	pcg *rand.PCG
}

// EngineParams carries every collaborator the engine needs.  All fields
// except Checkpoints, Recorder and Observer are required.
type EngineParams struct {
	Config    config.SearchConfig
	RunID     string
	Vocab     *Vocabulary
	Model     seqmodel.Model
	Simulator Simulator

	// PCG is the engine's random source; its state is captured in every
	// checkpoint so that a resumed run continues the same random stream.
	PCG *rand.PCG

	Checkpoints        *CheckpointManager
	SaveCheckpoints    bool
	CheckpointInterval int

	Recorder Recorder
	Observer Observer
	Logger   logging.Logger
}

// NewEngine builds the engine, resolving the configured selection policy and
// budget mode.  Configuration problems surface here, at startup, never
// mid-search.
func NewEngine(p EngineParams) (*Engine, error) {
	policy, err := NewPolicy(p.Config.Policy)
	if err != nil {
		return nil, err
	}
	budget, err := NewBudget(p.Config)
	if err != nil {
		return nil, err
	}
	if p.Model == nil || p.Vocab == nil || p.Simulator == nil || p.PCG == nil {
		return nil, errors.New(errors.ErrCodeInvalidParam, "engine requires model, vocabulary, simulator and random source")
	}
	if p.Model.VocabSize() != p.Vocab.Size() {
		return nil, errors.New(errors.ErrCodeModelShapeMismatch, "model vocabulary size does not match token table")
	}
	if p.Recorder == nil {
		p.Recorder = NopRecorder{}
	}
	if p.Observer == nil {
		p.Observer = NopObserver{}
	}
	if p.Logger == nil {
		p.Logger = logging.NewNopLogger()
	}

	maxLen := p.Model.MaxSequenceLength()
	var root *State
	if p.Config.InputSMILES != "" {
		root, err = NewSeededState(p.Vocab, maxLen, p.Config.InputSMILES)
		if err != nil {
			return nil, err
		}
	} else {
		root = NewRootState(p.Vocab, maxLen)
	}

	return &Engine{
		cfg:          p.Config,
		runID:        p.RunID,
		vocab:        p.Vocab,
		model:        p.Model,
		policy:       policy,
		sim:          p.Simulator,
		budget:       budget,
		tree:         NewTree(),
		rootState:    root,
		maxLen:       maxLen,
		ckpt:         p.Checkpoints,
		saveCkpt:     p.SaveCheckpoints && p.Checkpoints != nil,
		ckptInterval: p.CheckpointInterval,
		recorder:     p.Recorder,
		obs:          p.Observer,
		logger:       p.Logger,
		pcg:          p.PCG,
	}, nil
}

// Resume restores the engine from a loaded snapshot: the tree, the consumed
// budget and the random stream.  The budget controller continues from the
// recorded elapsed time, so a time-budgeted run never gains wall-clock time
// across restarts.
func (e *Engine) Resume(snap *Snapshot) error {
	tree, err := NewTreeFromRecords(snap.Nodes)
	if err != nil {
		return err
	}
	if err := e.pcg.UnmarshalBinary(snap.RNG); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointCorrupt, "failed to restore RNG state")
	}
	e.tree = tree
	e.budget.Resume(snap.Elapsed, snap.Generations)
	e.logger.Info("Resumed from checkpoint",
		logging.String("checkpoint_run_id", snap.RunID),
		logging.Int("nodes", tree.Size()),
		logging.Int("generations", snap.Generations),
		logging.Duration("elapsed", snap.Elapsed),
	)
	return nil
}

// Tree exposes the search tree for inspection.  Callers must not mutate it.
func (e *Engine) Tree() *Tree { return e.tree }

// Budget exposes the budget controller for inspection.
func (e *Engine) Budget() *Budget { return e.budget }

// Run executes MCTS iterations until the budget is exhausted, the context is
// cancelled, or the search space is fully exhausted.  A final checkpoint is
// written on every exit path when checkpointing is enabled.
func (e *Engine) Run(ctx context.Context) error {
	e.budget.Start()
	e.logger.Info("Search started",
		logging.String("run_id", e.runID),
		logging.String("budget_mode", e.budget.Mode()),
		logging.String("policy", e.cfg.Policy),
		logging.Float64("c_val", e.cfg.CVal),
		logging.Int("simulation_num", e.cfg.SimulationNum),
	)

	for !e.budget.Exhausted() {
		if ctx.Err() != nil {
			e.logger.Info("Search interrupted", logging.Err(ctx.Err()))
			break
		}

		completed, err := e.iterate(ctx)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeExpansionExhausted) {
				e.logger.Warn("Search space exhausted; stopping early",
					logging.Int("generations", e.budget.Generations()),
				)
				break
			}
			if ctx.Err() != nil {
				e.logger.Info("Search interrupted mid-iteration")
				break
			}
			e.finalCheckpoint()
			return err
		}
		if !completed {
			continue
		}

		gen := e.budget.CompleteIteration()
		e.obs.IterationCompleted(gen, e.tree.Size())
		if e.saveCkpt && e.ckptInterval > 0 && gen%e.ckptInterval == 0 {
			e.saveCheckpoint()
		}
	}

	e.finalCheckpoint()
	e.logger.Info("Search finished",
		logging.String("run_id", e.runID),
		logging.Int("generations", e.budget.Generations()),
		logging.Duration("elapsed", e.budget.Elapsed()),
		logging.Int("tree_size", e.tree.Size()),
	)
	return nil
}

// iterate performs one MCTS iteration.  It returns completed=false when the
// iteration was abandoned (stall, failed expansion); such iterations do not
// count against a generation budget.
func (e *Engine) iterate(ctx context.Context) (bool, error) {
	if e.tree.Exhausted(e.tree.Root()) {
		return false, errors.New(errors.ErrCodeExpansionExhausted, "root has no expandable descendants")
	}

	leaf := e.selectLeaf()
	st, err := e.stateFor(leaf)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeTreeInconsistent, "tree path does not form a valid state")
	}

	if e.tree.Exhausted(leaf) || st.IsTerminal() {
		if leaf == e.tree.Root() {
			return false, errors.New(errors.ErrCodeExpansionExhausted, "root state is terminal")
		}
		// Dead-end leaf: score it with the sentinel so selection is steered
		// away, and count the selection toward the node's stall threshold.
		e.tree.Backpropagate(leaf, -1)
		e.noteSelectionStall(leaf)
		return false, nil
	}

	dist, err := e.model.PredictNextTokens(ctx, st.Tokens())
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		e.logger.Error("Expansion inference failed",
			logging.Int("sequence_length", st.Len()),
			logging.Err(err),
		)
		e.failExpansion(leaf)
		return false, nil
	}

	tokens, priors := e.expandableTokens(dist)
	if len(tokens) == 0 {
		e.failExpansion(leaf)
		return false, nil
	}

	children := e.tree.Expand(leaf, tokens, priors)
	gen := e.budget.Generations() + 1
	for _, child := range children {
		cst, err := st.Extend(e.tree.Token(child))
		if err != nil {
			e.tree.Backpropagate(child, -1)
			continue
		}
		mean, outcomes, err := e.sim.Simulate(ctx, cst, e.cfg.SimulationNum)
		if err != nil {
			return false, err
		}
		e.tree.Backpropagate(child, mean)
		e.obs.RewardObserved(mean)
		e.recordOutcomes(ctx, gen, outcomes)
	}

	if e.cfg.FlushThreshold >= 0 {
		evicted := e.tree.PruneBelow(e.cfg.FlushThreshold, e.pathToRoot(leaf))
		if evicted > 0 {
			e.obs.NodesEvicted(evicted)
			e.logger.Debug("Flush-threshold eviction",
				logging.Int("evicted", evicted),
				logging.Int("tree_size", e.tree.Size()),
			)
		}
	}
	return true, nil
}

// selectLeaf descends from the root by policy score until it reaches a node
// with no children.
func (e *Engine) selectLeaf() int32 {
	cur := e.tree.Root()
	for len(e.tree.Children(cur)) > 0 {
		next := e.tree.SelectChild(cur, e.cfg.CVal, e.policy)
		if next == NoNode {
			return cur
		}
		cur = next
	}
	return cur
}

// stateFor reconstructs the State of a tree node from the root state plus
// the node's token path.
func (e *Engine) stateFor(id int32) (*State, error) {
	ids := e.rootState.Tokens()
	ids = append(ids, e.tree.PathTokens(id)...)
	return NewStateFromTokens(e.vocab, e.maxLen, ids)
}

// expandableTokens applies the cumulative-mass expansion rule: tokens are
// taken in descending prior order until their mass reaches the expansion
// threshold.  The end token's mass counts toward the total but it never
// becomes a child; reaching the end of a sequence is the rollout's job.
func (e *Engine) expandableTokens(dist []float32) ([]int, []float64) {
	idx := make([]int, len(dist))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] > dist[idx[b]] })

	var (
		tokens []int
		priors []float64
		cum    float64
	)
	for _, id := range idx {
		p := float64(dist[id])
		if p <= 0 {
			break
		}
		if id != e.vocab.EndID() && id != e.vocab.BeginID() {
			tokens = append(tokens, id)
			priors = append(priors, p)
		}
		cum += p
		if cum >= e.cfg.ExpansionThreshold {
			break
		}
	}
	return tokens, priors
}

// failExpansion records one failed expansion attempt and marks the node
// terminal-by-exhaustion once the threshold is crossed.
func (e *Engine) failExpansion(id int32) {
	e.tree.Backpropagate(id, -1)
	fails := e.tree.RecordFailedExpansion(id)
	if fails >= e.cfg.InfiniteLoopThresholdForExpansion {
		e.tree.MarkExhausted(id)
		e.obs.StallDetected("expansion")
		e.logger.Warn("Node expansion exhausted",
			logging.Int("failed_attempts", fails),
		)
	}
}

// noteSelectionStall counts one dead-end selection of id.  The count is
// cumulative per node, so a group of dead-end leaves that alternate under the
// selection policy (each sentinel backpropagation flips the argmax to a
// sibling) still drains toward exhaustion; a streak-based counter would reset
// on every flip and spin forever.  Crossing the threshold marks the node
// exhausted, which cascades to the root once every sibling is exhausted too.
func (e *Engine) noteSelectionStall(id int32) {
	count := e.tree.RecordDeadEndSelection(id)
	if count >= e.cfg.InfiniteLoopThresholdForSelection {
		e.tree.MarkExhausted(id)
		e.obs.StallDetected("selection")
		e.logger.Warn("Tree selection stalled on dead-end node",
			logging.Int("dead_end_selections", count),
		)
	}
}

// recordOutcomes writes every usable outcome to the molecule ledger and
// reports filter rejections to the observer.
func (e *Engine) recordOutcomes(ctx context.Context, generation int, outcomes []Outcome) {
	for _, o := range outcomes {
		if !o.Valid {
			e.obs.CandidateInvalid()
			continue
		}
		if o.Rejected {
			e.obs.CandidateRejected(o.RejectedBy)
			continue
		}
		rec := MoleculeRecord{
			RunID:      e.runID,
			Generation: generation,
			SMILES:     o.SMILES,
			Canonical:  o.Canonical,
			Reward:     o.Reward,
			Objectives: o.Objectives,
			Elapsed:    e.budget.Elapsed(),
			CreatedAt:  time.Now(),
		}
		if err := e.recorder.Record(ctx, rec); err != nil {
			e.logger.Error("Failed to record molecule", logging.Err(err))
		}
	}
}

// pathToRoot lists the nodes from id up to and including the root; these are
// exactly the nodes whose mean reward changed this iteration and therefore
// the only flush-threshold candidates.
func (e *Engine) pathToRoot(id int32) []int32 {
	var out []int32
	for cur := id; cur != NoNode; cur = e.tree.Parent(cur) {
		out = append(out, cur)
	}
	return out
}

// saveCheckpoint snapshots the current search state.
func (e *Engine) saveCheckpoint() {
	rng, err := e.pcg.MarshalBinary()
	if err != nil {
		e.logger.Error("Failed to serialise RNG state", logging.Err(err))
		return
	}
	snap := &Snapshot{
		RunID:       e.runID,
		Nodes:       e.tree.Export(),
		Elapsed:     e.budget.Elapsed(),
		Generations: e.budget.Generations(),
		RNG:         rng,
	}
	if err := e.ckpt.Save(context.Background(), snap); err != nil {
		e.logger.Error("Checkpoint save failed", logging.Err(err))
		return
	}
	e.obs.CheckpointSaved()
}

func (e *Engine) finalCheckpoint() {
	if e.saveCkpt {
		e.saveCheckpoint()
	}
}
