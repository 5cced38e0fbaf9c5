package search

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
)

// stubEval scores every candidate with a fixed function.
type stubEval struct {
	fn func(smiles string) Outcome
}

func (s stubEval) Evaluate(_ context.Context, smiles string) Outcome {
	if s.fn != nil {
		return s.fn(smiles)
	}
	return Outcome{SMILES: smiles, Valid: true, Reward: 0.5}
}

// endImmediately returns a distribution putting all mass on the end token.
func endImmediately(v *Vocabulary) func(ids []int) []float32 {
	return func([]int) []float32 {
		out := make([]float32, v.Size())
		out[v.EndID()] = 1
		return out
	}
}

func TestSampleToken(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	// All mass on one token: always sampled.
	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, SampleToken([]float32{0, 1, 0}, rng))
	}

	// Degenerate all-zero distribution falls back to the last id.
	assert.Equal(t, 2, SampleToken([]float32{0, 0, 0}, rng))

	// Sampling is deterministic for a fixed RNG state.
	a := rand.New(rand.NewPCG(3, 4))
	b := rand.New(rand.NewPCG(3, 4))
	dist := []float32{0.2, 0.3, 0.5}
	for i := 0; i < 50; i++ {
		assert.Equal(t, SampleToken(dist, a), SampleToken(dist, b))
	}
}

func TestSampleToken_UnnormalisedDistribution(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	counts := make([]int, 2)
	for i := 0; i < 1000; i++ {
		counts[SampleToken([]float32{3, 1}, rng)]++
	}
	assert.Greater(t, counts[0], counts[1], "sampling follows relative mass")
}

func TestLocalSimulator_Sequential(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 8, Fn: endImmediately(v)}
	sim := NewLocalSimulator(model, stubEval{}, rand.New(rand.NewPCG(1, 2)), 1, logging.NewNopLogger())

	st := NewRootState(v, 8)
	mean, outcomes, err := sim.Simulate(context.Background(), st, 4)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	assert.Equal(t, 0.5, mean)
}

func TestLocalSimulator_Parallel(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 8, Fn: endImmediately(v)}
	sim := NewLocalSimulator(model, stubEval{}, rand.New(rand.NewPCG(1, 2)), 4, logging.NewNopLogger())

	st := NewRootState(v, 8)
	mean, outcomes, err := sim.Simulate(context.Background(), st, 8)
	require.NoError(t, err)
	require.Len(t, outcomes, 8)
	assert.Equal(t, 0.5, mean)
}

func TestLocalSimulator_MeanIncludesSentinels(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 8, Fn: endImmediately(v)}

	rewards := []float64{1, -1}
	i := 0
	eval := stubEval{fn: func(smiles string) Outcome {
		r := rewards[i%len(rewards)]
		i++
		return Outcome{SMILES: smiles, Valid: r > 0, Reward: r}
	}}
	sim := NewLocalSimulator(model, eval, rand.New(rand.NewPCG(1, 2)), 1, logging.NewNopLogger())

	mean, _, err := sim.Simulate(context.Background(), NewRootState(v, 8), 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mean)
}

func TestLocalSimulator_ModelFailureYieldsSentinel(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 8, Err: assert.AnError}
	sim := NewLocalSimulator(model, stubEval{}, rand.New(rand.NewPCG(1, 2)), 1, logging.NewNopLogger())

	mean, outcomes, err := sim.Simulate(context.Background(), NewRootState(v, 8), 3)
	require.NoError(t, err, "model failures fold into the sentinel, not an error")
	assert.Equal(t, -1.0, mean)
	for _, o := range outcomes {
		assert.Equal(t, -1.0, o.Reward)
		assert.False(t, o.Valid)
	}
}

func TestLocalSimulator_Cancellation(t *testing.T) {
	v := testVocab(t)
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 8, Fn: endImmediately(v)}
	sim := NewLocalSimulator(model, stubEval{}, rand.New(rand.NewPCG(1, 2)), 1, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := sim.Simulate(ctx, NewRootState(v, 8), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalSimulator_LengthCapTerminatesRollout(t *testing.T) {
	v := testVocab(t)
	// The model never emits the end token; the length cap must stop the
	// rollout anyway.
	fn := func([]int) []float32 {
		out := make([]float32, v.Size())
		out[2] = 1 // C
		return out
	}
	model := &seqmodel.FakeModel{Vocab: v.Size(), MaxLen: 5, Fn: fn}
	eval := stubEval{fn: func(smiles string) Outcome {
		return Outcome{SMILES: smiles, Valid: true, Reward: 0.1}
	}}
	sim := NewLocalSimulator(model, eval, rand.New(rand.NewPCG(1, 2)), 1, logging.NewNopLogger())

	_, outcomes, err := sim.Simulate(context.Background(), NewRootState(v, 5), 1)
	require.NoError(t, err)
	assert.Equal(t, "CCCC", outcomes[0].SMILES)
}
