package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/search"
	"github.com/turtacn/MolGenesis/pkg/types/rollout"
)

func TestOutcomeConversionRoundTrip(t *testing.T) {
	orig := []search.Outcome{
		{
			SMILES:        "CCO",
			Canonical:     "CCO",
			Valid:         true,
			FiltersPassed: 3,
			FiltersTotal:  3,
			Reward:        0.72,
			Objectives:    map[string]float64{"logp": -0.22, "sascore": 1.5},
		},
		{
			SMILES:     "C1CC",
			Valid:      false,
			Reward:     -1,
			Rejected:   false,
			RejectedBy: "",
		},
		{
			SMILES:        "c1ccccc1",
			Canonical:     "c1ccccc1",
			Valid:         true,
			Rejected:      true,
			RejectedBy:    "ring_size",
			FiltersPassed: 1,
			FiltersTotal:  3,
			Reward:        -1,
		},
	}

	back := toSearchOutcomes(toWireOutcomes(orig))
	assert.Equal(t, orig, back)
}

func TestJobEncodingIsStable(t *testing.T) {
	job := rollout.Job{
		ID:       "job-1",
		RunID:    "run-1",
		Tokens:   []int{0, 4, 7},
		Rollouts: 3,
		Seed:     [2]uint64{11, 42},
		IssuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(job)
	require.NoError(t, err)

	var got rollout.Job
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, job, got)
}

func TestResultErrorFieldOmittedWhenEmpty(t *testing.T) {
	res := rollout.Result{JobID: "j", RunID: "r", WorkerID: "w", MeanReward: 0.5}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
}
