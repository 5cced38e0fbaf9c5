package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

func TestUCB1(t *testing.T) {
	p := UCB1{}

	assert.True(t, math.IsInf(p.Score(5, 0, 0, 0.5, 1.0), 1), "unvisited children score +Inf")

	// Pure exploitation at c_val 0: the score is the mean reward.
	assert.InDelta(t, 0.4, p.Score(10, 5, 2.0, 0.5, 0), 1e-12)

	// With exploration, fewer visits score higher at equal means.
	rare := p.Score(100, 2, 1.0, 0.5, 1.0)
	common := p.Score(100, 50, 25.0, 0.5, 1.0)
	assert.Greater(t, rare, common)
}

func TestPUCT(t *testing.T) {
	p := PUCT{}

	// Unvisited children are finite under PUCT, ranked by prior.
	high := p.Score(10, 0, 0, 0.9, 1.0)
	low := p.Score(10, 0, 0, 0.1, 1.0)
	assert.False(t, math.IsInf(high, 1))
	assert.Greater(t, high, low)
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("ucb1")
	require.NoError(t, err)
	assert.IsType(t, UCB1{}, p)

	p, err = NewPolicy("puct")
	require.NoError(t, err)
	assert.IsType(t, PUCT{}, p)

	_, err = NewPolicy("alphago")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))
}

func TestPolicyNames(t *testing.T) {
	names := PolicyNames()
	assert.Contains(t, names, "ucb1")
	assert.Contains(t, names, "puct")
}

func TestRegisterPolicy_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { RegisterPolicy("ucb1", func() Policy { return UCB1{} }) })
}
