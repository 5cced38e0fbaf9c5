package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/domain/filter"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/internal/domain/reward"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

// stubCalc is a reward.Calculator returning a fixed result.
type stubCalc struct {
	score float64
	err   error
}

func (s stubCalc) Name() string { return "stub" }

func (s stubCalc) Score(*molecule.Molecule) (float64, map[string]float64, error) {
	return s.score, map[string]float64{"stub": s.score}, s.err
}

func newPipeline(t *testing.T, filters []filter.Filter, calc reward.Calculator, includeFilterResult bool) *Pipeline {
	t.Helper()
	return NewPipeline(molecule.NewDecoder(), false, filters, calc, includeFilterResult, logging.NewNopLogger())
}

func TestPipeline_ValidCandidate(t *testing.T) {
	p := newPipeline(t, nil, stubCalc{score: 0.8}, false)
	out := p.Evaluate(context.Background(), "CCO")

	assert.True(t, out.Valid)
	assert.False(t, out.Rejected)
	assert.Equal(t, 0.8, out.Reward)
	assert.NotEmpty(t, out.Canonical)
	assert.Equal(t, 0.8, out.Objectives["stub"])
}

func TestPipeline_EmptySMILES(t *testing.T) {
	p := newPipeline(t, nil, stubCalc{score: 0.8}, false)
	out := p.Evaluate(context.Background(), "")
	assert.False(t, out.Valid)
	assert.Equal(t, -1.0, out.Reward)
}

func TestPipeline_DecodeFailure(t *testing.T) {
	p := newPipeline(t, nil, stubCalc{score: 0.8}, false)
	out := p.Evaluate(context.Background(), "C1CC")
	assert.False(t, out.Valid)
	assert.Equal(t, -1.0, out.Reward)
}

func TestPipeline_FilterRejection(t *testing.T) {
	p := newPipeline(t, []filter.Filter{filter.NewRingSize(6)}, stubCalc{score: 0.8}, false)
	out := p.Evaluate(context.Background(), "C1CCCCCCC1")

	assert.True(t, out.Valid)
	assert.True(t, out.Rejected)
	assert.Equal(t, "ring_size", out.RejectedBy)
	assert.Equal(t, -1.0, out.Reward)
}

func TestPipeline_FilterChainStopsAtFirstRejection(t *testing.T) {
	p := newPipeline(t, []filter.Filter{filter.NewRingSize(6), filter.NewRadical()}, stubCalc{score: 0.8}, false)
	out := p.Evaluate(context.Background(), "C1CCCCCCC1")
	assert.Equal(t, "ring_size", out.RejectedBy)
	assert.Equal(t, 0, out.FiltersPassed)
	assert.Equal(t, 2, out.FiltersTotal)
}

func TestPipeline_IncludeFilterResultScales(t *testing.T) {
	filters := []filter.Filter{filter.NewRingSize(6), filter.NewRadical()}
	p := newPipeline(t, filters, stubCalc{score: 0.8}, true)

	// One of two filters fails: the candidate is not rejected, the reward is
	// scaled by the fraction passed.
	out := p.Evaluate(context.Background(), "C1CCCCCCC1")
	assert.False(t, out.Rejected)
	assert.Equal(t, 1, out.FiltersPassed)
	assert.InDelta(t, 0.4, out.Reward, 1e-12)

	// All filters pass: no scaling.
	out = p.Evaluate(context.Background(), "CCO")
	assert.Equal(t, 0.8, out.Reward)
}

func TestPipeline_UndefinedRewardReplacesScaling(t *testing.T) {
	filters := []filter.Filter{filter.NewRingSize(6)}
	p := newPipeline(t, filters, stubCalc{score: reward.Undefined}, true)

	out := p.Evaluate(context.Background(), "C1CCCCCCC1")
	assert.Equal(t, -1.0, out.Reward, "the sentinel replaces filter scaling, never stacks with it")
}

func TestPipeline_CalculatorError(t *testing.T) {
	p := newPipeline(t, nil, stubCalc{score: 0.8, err: assert.AnError}, false)
	out := p.Evaluate(context.Background(), "CCO")
	assert.Equal(t, -1.0, out.Reward)
}

func TestPipeline_Neutralization(t *testing.T) {
	p := NewPipeline(molecule.NewDecoder(), true, nil, stubCalc{score: 0.5}, false, logging.NewNopLogger())
	out := p.Evaluate(context.Background(), "[NH4+]")
	require.True(t, out.Valid)
	assert.Equal(t, "N", out.Canonical)
}

func TestPipeline_RealCalculator(t *testing.T) {
	p := newPipeline(t, nil, reward.NewLogP(), false)
	out := p.Evaluate(context.Background(), "CCO")
	assert.True(t, out.Valid)
	assert.Greater(t, out.Reward, 0.0)
	assert.Less(t, out.Reward, 1.0)
	assert.Contains(t, out.Objectives, "logp")
}
