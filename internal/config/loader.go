package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all engine settings.
const envPrefix = "MOLGEN"

// newViper builds a pre-configured Viper instance: YAML file type, MOLGEN_
// env prefix, automatic env binding, and a key replacer that maps "." to "_"
// so that nested keys like "archive.host" resolve to MOLGEN_ARCHIVE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Fields whose zero value is a meaningful setting are defaulted here
	// rather than in ApplyDefaults: an explicit c_val: 0 or
	// flush_threshold: 0 must survive loading, not be coerced back to the
	// default.
	v.SetDefault("search.c_val", DefaultCVal)
	v.SetDefault("search.flush_threshold", DefaultFlushThreshold)
	return v
}

// Load reads the YAML file at configPath, merges MOLGEN_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MOLGEN_* environment variables,
// with no config file required.  This is the loading strategy for
// containerised worker deployments.
//
// Naming convention: MOLGEN_<SECTION>_<FIELD>, e.g. MOLGEN_QUEUE_BROKERS,
// MOLGEN_MODEL_PATH.
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
