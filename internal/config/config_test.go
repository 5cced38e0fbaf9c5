package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// validConfig returns a minimal configuration that passes Validate after
// defaults are applied.
func validConfig() *Config {
	cfg := &Config{}
	cfg.Model.Path = "model.onnx"
	cfg.Model.VocabPath = "vocab.json"
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_MinimalConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_BudgetModes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		code    errors.ErrorCode
	}{
		{
			name:   "time mode with positive hours",
			mutate: func(c *Config) { c.Search.ThresholdType = ThresholdTime; c.Search.Hours = 0.5 },
		},
		{
			name:    "time mode with zero hours",
			mutate:  func(c *Config) { c.Search.ThresholdType = ThresholdTime; c.Search.Hours = -1 },
			wantErr: true,
			code:    errors.ErrCodeBudgetMisconfigured,
		},
		{
			name: "generation mode with positive count",
			mutate: func(c *Config) {
				c.Search.ThresholdType = ThresholdGenerationNum
				c.Search.GenerationNum = 500
			},
		},
		{
			name: "generation mode with negative count",
			mutate: func(c *Config) {
				c.Search.ThresholdType = ThresholdGenerationNum
				c.Search.GenerationNum = -5
			},
			wantErr: true,
			code:    errors.ErrCodeBudgetMisconfigured,
		},
		{
			name:    "unknown threshold type",
			mutate:  func(c *Config) { c.Search.ThresholdType = "iterations" },
			wantErr: true,
			code:    errors.ErrCodeBudgetMisconfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.code))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_SearchBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Search.ExpansionThreshold = 1.2
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Search.CVal = -0.1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Search.LeafParallel = true
	cfg.Search.QueueParallel = true
	cfg.Queue.Brokers = []string{"localhost:9092"}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiredModelFields(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Path = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Model.VocabPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_CheckpointRules(t *testing.T) {
	cfg := validConfig()
	cfg.Checkpoint.Restart = true
	cfg.Checkpoint.File = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Checkpoint.Mirror = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Checkpoint.Mirror = true
	cfg.Storage.Endpoint = "minio:9000"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_QueueParallelNeedsBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Search.QueueParallel = true
	assert.Error(t, cfg.Validate())

	cfg.Queue.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RewardObjectives(t *testing.T) {
	cfg := validConfig()
	cfg.Reward.Objectives = []ObjectiveConfig{{Name: "", Weight: 1}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRewardConfigInvalid))

	cfg = validConfig()
	cfg.Reward.Objectives = []ObjectiveConfig{{Name: "sascore", Weight: -1}}
	assert.Error(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.NotEmpty(t, cfg.Run.ID)
	assert.Equal(t, DefaultOutputDir, cfg.Run.OutputDir)
	assert.Equal(t, ThresholdTime, cfg.Search.ThresholdType)
	assert.Equal(t, DefaultHours, cfg.Search.Hours)
	assert.Equal(t, DefaultGenerationNum, cfg.Search.GenerationNum)
	assert.Equal(t, DefaultSimulationNum, cfg.Search.SimulationNum)
	assert.Equal(t, DefaultExpansionThreshold, cfg.Search.ExpansionThreshold)
	assert.Equal(t, DefaultSelectionStall, cfg.Search.InfiniteLoopThresholdForSelection)
	assert.Equal(t, DefaultExpansionStall, cfg.Search.InfiniteLoopThresholdForExpansion)
	assert.Equal(t, DefaultPolicy, cfg.Search.Policy)
	assert.Equal(t, DefaultMaxLength, cfg.Model.MaxLength)
	assert.Equal(t, DefaultRewardName, cfg.Reward.Name)
	assert.Equal(t, DefaultSAScoreThreshold, cfg.Filters.SAScore.Threshold)
	assert.Equal(t, DefaultRingSizeThreshold, cfg.Filters.RingSize.Threshold)
	assert.Equal(t, DefaultCheckpointInterval, cfg.Checkpoint.Interval)
	assert.Equal(t, DefaultJobsTopic, cfg.Queue.JobsTopic)
}

func TestApplyDefaults_LeavesZeroMeaningfulTunables(t *testing.T) {
	// c_val 0 is greedy selection and flush_threshold 0 enables pruning at 0;
	// their defaults are the loader's job, where set and unset are
	// distinguishable.
	cfg := &Config{}
	ApplyDefaults(cfg)
	assert.Zero(t, cfg.Search.CVal)
	assert.Zero(t, cfg.Search.FlushThreshold)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Search.CVal = 0.3
	cfg.Search.GenerationNum = 50
	cfg.Run.ID = "fixed-run"
	ApplyDefaults(cfg)

	assert.Equal(t, 0.3, cfg.Search.CVal)
	assert.Equal(t, 50, cfg.Search.GenerationNum)
	assert.Equal(t, "fixed-run", cfg.Run.ID)
}

func TestApplyDefaults_DebugRaisesLogLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Run.Debug = true
	ApplyDefaults(cfg)
	assert.Equal(t, "debug", cfg.Log.Level)

	cfg = &Config{}
	cfg.Run.Debug = true
	cfg.Log.Level = "warn"
	ApplyDefaults(cfg)
	assert.Equal(t, "warn", cfg.Log.Level)
}
