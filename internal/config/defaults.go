package config

import (
	"time"

	"github.com/google/uuid"
)

// Default search parameters.  These mirror the values the engine was tuned
// with; overriding any of them is a config-file concern, never a code change.
const (
	DefaultCVal               = 1.0
	DefaultThresholdType      = ThresholdTime
	DefaultHours              = 1.0
	DefaultGenerationNum      = 1000
	DefaultSimulationNum      = 3
	DefaultExpansionThreshold = 0.995
	DefaultFlushThreshold     = -1.0
	DefaultSelectionStall     = 1000
	DefaultExpansionStall     = 20
	DefaultPolicy             = "ucb1"
	DefaultLeafParallelNum    = 4
)

// Default model and reward parameters.
const (
	DefaultMaxLength     = 82
	DefaultModelSessions = 1
	DefaultRewardName    = "logp"
)

// Default filter parameters.
const (
	DefaultLipinskiVariant   = "rule_of_5"
	DefaultSAScoreThreshold  = 3.5
	DefaultRingSizeThreshold = 6
)

// Default infrastructure parameters.
const (
	DefaultCheckpointInterval = 100
	DefaultCheckpointFile     = "molgen.ckpt"
	DefaultOutputDir          = "result"
	DefaultMetricsAddr        = ":9108"
	DefaultJobsTopic          = "molgen.rollout.jobs"
	DefaultResultsTopic       = "molgen.rollout.results"
	DefaultQueueGroupID       = "molgen-workers"
	DefaultDedupTTL           = 24 * time.Hour
	DefaultArchiveSSLMode     = "disable"
	DefaultArchiveMaxConns    = 8
	DefaultArchiveConnLife    = 30 * time.Minute
)

// ApplyDefaults fills every unset field of cfg with its default value.  It
// never overwrites a value that was set explicitly, so it is safe to call on
// a partially populated configuration.
//
// CVal and FlushThreshold are not touched here: their zero values are
// meaningful settings (greedy selection, pruning at threshold 0), so their
// defaults live in the loader where set and unset can be told apart.
func ApplyDefaults(cfg *Config) {
	if cfg.Run.ID == "" {
		cfg.Run.ID = uuid.NewString()
	}
	if cfg.Run.OutputDir == "" {
		cfg.Run.OutputDir = DefaultOutputDir
	}

	s := &cfg.Search
	if s.ThresholdType == "" {
		s.ThresholdType = DefaultThresholdType
	}
	if s.Hours == 0 {
		s.Hours = DefaultHours
	}
	if s.GenerationNum == 0 {
		s.GenerationNum = DefaultGenerationNum
	}
	if s.SimulationNum == 0 {
		s.SimulationNum = DefaultSimulationNum
	}
	if s.ExpansionThreshold == 0 {
		s.ExpansionThreshold = DefaultExpansionThreshold
	}
	if s.InfiniteLoopThresholdForSelection == 0 {
		s.InfiniteLoopThresholdForSelection = DefaultSelectionStall
	}
	if s.InfiniteLoopThresholdForExpansion == 0 {
		s.InfiniteLoopThresholdForExpansion = DefaultExpansionStall
	}
	if s.Policy == "" {
		s.Policy = DefaultPolicy
	}
	if s.LeafParallelNum == 0 {
		s.LeafParallelNum = DefaultLeafParallelNum
	}

	if cfg.Model.MaxLength == 0 {
		cfg.Model.MaxLength = DefaultMaxLength
	}
	if cfg.Model.Sessions == 0 {
		cfg.Model.Sessions = DefaultModelSessions
	}

	if cfg.Reward.Name == "" {
		cfg.Reward.Name = DefaultRewardName
	}
	for i := range cfg.Reward.Objectives {
		if cfg.Reward.Objectives[i].Weight == 0 {
			cfg.Reward.Objectives[i].Weight = 1
		}
	}

	if cfg.Filters.Lipinski.Variant == "" {
		cfg.Filters.Lipinski.Variant = DefaultLipinskiVariant
	}
	if cfg.Filters.SAScore.Threshold == 0 {
		cfg.Filters.SAScore.Threshold = DefaultSAScoreThreshold
	}
	if cfg.Filters.RingSize.Threshold == 0 {
		cfg.Filters.RingSize.Threshold = DefaultRingSizeThreshold
	}

	if cfg.Checkpoint.Interval == 0 {
		cfg.Checkpoint.Interval = DefaultCheckpointInterval
	}
	if cfg.Checkpoint.File == "" {
		cfg.Checkpoint.File = DefaultCheckpointFile
	}

	if cfg.Archive.SSLMode == "" {
		cfg.Archive.SSLMode = DefaultArchiveSSLMode
	}
	if cfg.Archive.MaxConns == 0 {
		cfg.Archive.MaxConns = DefaultArchiveMaxConns
	}
	if cfg.Archive.ConnLifetime == 0 {
		cfg.Archive.ConnLifetime = DefaultArchiveConnLife
	}

	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = DefaultDedupTTL
	}

	if cfg.Queue.JobsTopic == "" {
		cfg.Queue.JobsTopic = DefaultJobsTopic
	}
	if cfg.Queue.ResultsTopic == "" {
		cfg.Queue.ResultsTopic = DefaultResultsTopic
	}
	if cfg.Queue.GroupID == "" {
		cfg.Queue.GroupID = DefaultQueueGroupID
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}

	if cfg.Run.Debug && cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
}
