package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

func TestNewBudget_Errors(t *testing.T) {
	_, err := NewBudget(config.SearchConfig{ThresholdType: "epochs"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBudgetMisconfigured))

	_, err = NewBudget(config.SearchConfig{ThresholdType: config.ThresholdTime, Hours: 0})
	assert.Error(t, err)

	_, err = NewBudget(config.SearchConfig{ThresholdType: config.ThresholdGenerationNum, GenerationNum: 0})
	assert.Error(t, err)
}

func TestBudget_GenerationMode(t *testing.T) {
	b, err := NewBudget(config.SearchConfig{ThresholdType: config.ThresholdGenerationNum, GenerationNum: 3})
	require.NoError(t, err)
	b.Start()

	assert.False(t, b.Exhausted())
	assert.Equal(t, 1, b.CompleteIteration())
	assert.Equal(t, 2, b.CompleteIteration())
	assert.False(t, b.Exhausted())
	assert.Equal(t, 3, b.CompleteIteration())
	assert.True(t, b.Exhausted())
	assert.Equal(t, 3, b.Generations())
}

func TestBudget_TimeMode(t *testing.T) {
	b, err := NewBudget(config.SearchConfig{ThresholdType: config.ThresholdTime, Hours: 1})
	require.NoError(t, err)

	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return cur }
	b.Start()

	assert.False(t, b.Exhausted())
	cur = cur.Add(30 * time.Minute)
	assert.False(t, b.Exhausted())
	assert.Equal(t, 30*time.Minute, b.Elapsed())

	cur = cur.Add(31 * time.Minute)
	assert.True(t, b.Exhausted())
}

func TestBudget_ResumeNeverExtendsTime(t *testing.T) {
	b, err := NewBudget(config.SearchConfig{ThresholdType: config.ThresholdTime, Hours: 1})
	require.NoError(t, err)

	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return cur }

	// A previous segment already consumed 50 minutes and 42 generations.
	b.Resume(50*time.Minute, 42)
	b.Start()
	assert.Equal(t, 42, b.Generations())
	assert.Equal(t, 50*time.Minute, b.Elapsed())

	cur = cur.Add(9 * time.Minute)
	assert.False(t, b.Exhausted())
	cur = cur.Add(2 * time.Minute)
	assert.True(t, b.Exhausted(), "restart must not grant extra wall-clock time")
}
