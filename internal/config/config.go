// Package config provides configuration loading, defaults, and validation for
// the MolGenesis engine.
package config

import (
	"strconv"
	"time"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Budget threshold types accepted by SearchConfig.ThresholdType.
const (
	ThresholdTime          = "time"
	ThresholdGenerationNum = "generation_num"
)

// Config is the root configuration for both the search CLI and the rollout
// worker.  All sections are populated from YAML plus MOLGEN_* environment
// overrides; ApplyDefaults fills unset fields and Validate rejects any
// combination the engine cannot run with.
type Config struct {
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Reward     RewardConfig     `yaml:"reward" mapstructure:"reward"`
	Filters    FiltersConfig    `yaml:"filters" mapstructure:"filters"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Dedup      DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Log        logging.LogConfig `yaml:"log" mapstructure:"log"`
}

// RunConfig identifies a single search run and where its artefacts land.
type RunConfig struct {
	// ID is generated when empty; it labels the molecule ledger, checkpoint
	// files and metrics for one run.
	ID        string `yaml:"id" mapstructure:"id"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Debug     bool   `yaml:"debug" mapstructure:"debug"`
}

// SearchConfig carries all tree-search parameters.
type SearchConfig struct {
	// CVal is the UCB1 exploration constant.
	CVal float64 `yaml:"c_val" mapstructure:"c_val"`

	// ThresholdType selects the budget mode: "time" or "generation_num".
	// Exactly one of Hours / GenerationNum is meaningful depending on it.
	ThresholdType string  `yaml:"threshold_type" mapstructure:"threshold_type"`
	Hours         float64 `yaml:"hours" mapstructure:"hours"`
	GenerationNum int     `yaml:"generation_num" mapstructure:"generation_num"`

	// SimulationNum is the number of rollouts per newly expanded child.
	SimulationNum int `yaml:"simulation_num" mapstructure:"simulation_num"`

	// ExpansionThreshold is the cumulative prior mass kept during expansion:
	// children are the highest-probability tokens whose priors sum to at
	// least this value.
	ExpansionThreshold float64 `yaml:"expansion_threshold" mapstructure:"expansion_threshold"`

	// FlushThreshold evicts the children of any node whose subtree mean
	// reward falls below it, bounding memory; negative disables pruning.
	FlushThreshold float64 `yaml:"flush_threshold" mapstructure:"flush_threshold"`

	InfiniteLoopThresholdForSelection int `yaml:"infinite_loop_threshold_for_selection" mapstructure:"infinite_loop_threshold_for_selection"`
	InfiniteLoopThresholdForExpansion int `yaml:"infinite_loop_threshold_for_expansion" mapstructure:"infinite_loop_threshold_for_expansion"`

	// Policy names the selection policy in the policy registry.
	Policy string `yaml:"policy" mapstructure:"policy"`

	// LeafParallel runs the rollouts of one expansion concurrently.
	LeafParallel    bool `yaml:"leaf_parallel" mapstructure:"leaf_parallel"`
	LeafParallelNum int  `yaml:"leaf_parallel_num" mapstructure:"leaf_parallel_num"`

	// QueueParallel dispatches rollouts to stateless workers over the
	// message queue instead of running them in-process.
	QueueParallel bool `yaml:"queue_parallel" mapstructure:"queue_parallel"`

	// InputSMILES seeds the root state with a tokenized prefix (extend mode).
	InputSMILES string `yaml:"input_smiles" mapstructure:"input_smiles"`
}

// ModelConfig locates the next-token sequence model.
type ModelConfig struct {
	// Path is the ONNX model file.
	Path string `yaml:"path" mapstructure:"path"`

	// VocabPath is the JSON token table the model was trained with.
	VocabPath string `yaml:"vocab_path" mapstructure:"vocab_path"`

	// MaxLength bounds generated token sequences, begin and end tokens included.
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`

	// Sessions is the size of the inference session pool.
	Sessions int `yaml:"sessions" mapstructure:"sessions"`
}

// ObjectiveConfig describes one sub-objective of the dscore calculator.
type ObjectiveConfig struct {
	// Name selects the raw property: "activity", "sascore", "qed".
	Name string `yaml:"name" mapstructure:"name"`

	// WeightsPath is the JSON linear-model file for activity objectives.
	WeightsPath string `yaml:"weights_path" mapstructure:"weights_path"`

	// Weight is the exponent in the weighted geometric mean.
	Weight float64 `yaml:"weight" mapstructure:"weight"`

	// Scaling shapes the raw value into [0, 1]: "max_gauss", "min_gauss",
	// "minmax" or "" for no shaping.
	Scaling string  `yaml:"scaling" mapstructure:"scaling"`
	Mu      float64 `yaml:"mu" mapstructure:"mu"`
	Sigma   float64 `yaml:"sigma" mapstructure:"sigma"`
	Min     float64 `yaml:"min" mapstructure:"min"`
	Max     float64 `yaml:"max" mapstructure:"max"`
}

// RewardConfig selects and parameterises the reward calculator.
type RewardConfig struct {
	// Name selects the calculator in the reward registry: "dscore", "logp".
	Name string `yaml:"name" mapstructure:"name"`

	// IncludeFilterResult turns filters from rejectors into reward scalers:
	// the computed reward is multiplied by the fraction of filters passed.
	IncludeFilterResult bool `yaml:"include_filter_result" mapstructure:"include_filter_result"`

	Objectives []ObjectiveConfig `yaml:"objectives" mapstructure:"objectives"`
}

// FiltersConfig lists the active filters and their parameters.
type FiltersConfig struct {
	// Use names the filters applied, in order.  Unknown names fail at startup.
	Use []string `yaml:"use" mapstructure:"use"`

	// Neutralization converts charged candidates to their neutral form before
	// filtering and scoring.
	Neutralization bool `yaml:"neutralization" mapstructure:"neutralization"`

	Lipinski LipinskiFilterConfig `yaml:"lipinski" mapstructure:"lipinski"`
	SAScore  SAScoreFilterConfig  `yaml:"sascore" mapstructure:"sascore"`
	RingSize RingSizeFilterConfig `yaml:"ring_size" mapstructure:"ring_size"`
}

// LipinskiFilterConfig parameterises the drug-likeness filter.
type LipinskiFilterConfig struct {
	// Variant is "rule_of_5" or "ghose".
	Variant string `yaml:"variant" mapstructure:"variant"`
}

// SAScoreFilterConfig parameterises the synthesizability filter.
type SAScoreFilterConfig struct {
	// Threshold is the maximum accepted synthetic-accessibility score.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// RingSizeFilterConfig parameterises the ring-size filter.
type RingSizeFilterConfig struct {
	// Threshold is the maximum accepted ring size.
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
}

// CheckpointConfig controls snapshot persistence.
type CheckpointConfig struct {
	Save bool `yaml:"save" mapstructure:"save"`

	// Restart resumes the search from File instead of starting fresh.
	Restart bool   `yaml:"restart" mapstructure:"restart"`
	File    string `yaml:"file" mapstructure:"file"`

	// Interval is the number of completed generations between snapshots.
	Interval int `yaml:"interval" mapstructure:"interval"`

	// Mirror uploads every snapshot to object storage as well.
	Mirror bool `yaml:"mirror" mapstructure:"mirror"`
}

// ArchiveConfig configures the PostgreSQL molecule archive.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Host          string        `yaml:"host" mapstructure:"host"`
	Port          int           `yaml:"port" mapstructure:"port"`
	Database      string        `yaml:"database" mapstructure:"database"`
	Username      string        `yaml:"username" mapstructure:"username"`
	Password      string        `yaml:"password" mapstructure:"password"`
	SSLMode       string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxConns      int           `yaml:"max_conns" mapstructure:"max_conns"`
	ConnLifetime  time.Duration `yaml:"conn_lifetime" mapstructure:"conn_lifetime"`
	MigrationsDir string        `yaml:"migrations_dir" mapstructure:"migrations_dir"`
}

// DedupConfig configures the Redis duplicate store.  When disabled the engine
// falls back to an in-memory set scoped to the run.
type DedupConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// QueueConfig configures the Kafka rollout queue used by queue_parallel mode.
type QueueConfig struct {
	Brokers      []string `yaml:"brokers" mapstructure:"brokers"`
	JobsTopic    string   `yaml:"jobs_topic" mapstructure:"jobs_topic"`
	ResultsTopic string   `yaml:"results_topic" mapstructure:"results_topic"`
	GroupID      string   `yaml:"group_id" mapstructure:"group_id"`
}

// StorageConfig configures the optional MinIO checkpoint mirror.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the configuration for combinations the engine cannot run
// with.  It is called once after defaults are applied; a non-nil return is
// always fatal at startup.
func (c *Config) Validate() error {
	if err := c.Search.validate(); err != nil {
		return err
	}
	if c.Model.Path == "" {
		return errors.New(errors.ErrCodeValidation, "model.path is required")
	}
	if c.Model.VocabPath == "" {
		return errors.New(errors.ErrCodeValidation, "model.vocab_path is required")
	}
	if c.Model.MaxLength < 2 {
		return errors.New(errors.ErrCodeValidation, "model.max_length must allow at least begin and end tokens")
	}
	if c.Reward.Name == "" {
		return errors.New(errors.ErrCodeValidation, "reward.name is required")
	}
	for i, obj := range c.Reward.Objectives {
		if obj.Name == "" {
			return errors.New(errors.ErrCodeRewardConfigInvalid, "objective name is required").
				WithDetail("reward.objectives[" + strconv.Itoa(i) + "]")
		}
		if obj.Weight < 0 {
			return errors.New(errors.ErrCodeRewardConfigInvalid, "objective weight must be non-negative").
				WithDetail(obj.Name)
		}
	}
	if c.Checkpoint.Restart && c.Checkpoint.File == "" {
		return errors.New(errors.ErrCodeValidation, "checkpoint.file is required when checkpoint.restart is set")
	}
	if c.Checkpoint.Save && c.Checkpoint.Interval <= 0 {
		return errors.New(errors.ErrCodeValidation, "checkpoint.interval must be positive when checkpoint.save is set")
	}
	if c.Checkpoint.Mirror && c.Storage.Endpoint == "" {
		return errors.New(errors.ErrCodeValidation, "storage.endpoint is required when checkpoint.mirror is set")
	}
	if c.Search.QueueParallel && len(c.Queue.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "queue.brokers is required when search.queue_parallel is set")
	}
	if c.Archive.Enabled && c.Archive.Host == "" {
		return errors.New(errors.ErrCodeValidation, "archive.host is required when archive.enabled is set")
	}
	if c.Dedup.Enabled && c.Dedup.Addr == "" {
		return errors.New(errors.ErrCodeValidation, "dedup.addr is required when dedup.enabled is set")
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.CVal < 0 {
		return errors.New(errors.ErrCodeValidation, "search.c_val must be non-negative")
	}
	switch s.ThresholdType {
	case ThresholdTime:
		if s.Hours <= 0 {
			return errors.New(errors.ErrCodeBudgetMisconfigured, "search.hours must be positive in time mode")
		}
	case ThresholdGenerationNum:
		if s.GenerationNum <= 0 {
			return errors.New(errors.ErrCodeBudgetMisconfigured, "search.generation_num must be positive in generation mode")
		}
	default:
		return errors.New(errors.ErrCodeBudgetMisconfigured, "search.threshold_type must be \"time\" or \"generation_num\"").
			WithDetail(s.ThresholdType)
	}
	if s.SimulationNum <= 0 {
		return errors.New(errors.ErrCodeValidation, "search.simulation_num must be positive")
	}
	if s.ExpansionThreshold <= 0 || s.ExpansionThreshold > 1 {
		return errors.New(errors.ErrCodeValidation, "search.expansion_threshold must be in (0, 1]")
	}
	if s.InfiniteLoopThresholdForSelection <= 0 {
		return errors.New(errors.ErrCodeValidation, "search.infinite_loop_threshold_for_selection must be positive")
	}
	if s.InfiniteLoopThresholdForExpansion <= 0 {
		return errors.New(errors.ErrCodeValidation, "search.infinite_loop_threshold_for_expansion must be positive")
	}
	if s.LeafParallel && s.LeafParallelNum <= 0 {
		return errors.New(errors.ErrCodeValidation, "search.leaf_parallel_num must be positive when leaf_parallel is set")
	}
	if s.LeafParallel && s.QueueParallel {
		return errors.New(errors.ErrCodeValidation, "search.leaf_parallel and search.queue_parallel are mutually exclusive")
	}
	return nil
}
