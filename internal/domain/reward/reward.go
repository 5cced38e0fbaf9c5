// Package reward implements the reward calculators that score terminal
// molecules for the tree search.  All calculators map into [0, 1]; the
// Undefined sentinel marks candidates no statistic should be updated for.
package reward

import (
	"sort"
	"sync"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Undefined is the reward sentinel for unusable candidates.  The search
// engine backpropagates it verbatim, so calculators must return it exactly
// rather than any other negative value.
const Undefined = -1.0

// Calculator scores a decoded molecule.  The map carries the raw
// sub-objective values for the molecule ledger; it may be nil when the
// calculator has no sub-objectives.
type Calculator interface {
	Name() string
	Score(m *molecule.Molecule) (float64, map[string]float64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Calculator registry
// ─────────────────────────────────────────────────────────────────────────────

// Factory builds a calculator from the reward section of the configuration.
type Factory func(cfg config.RewardConfig) (Calculator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"logp": func(config.RewardConfig) (Calculator, error) {
			return NewLogP(), nil
		},
		"qed": func(config.RewardConfig) (Calculator, error) {
			return NewQED(), nil
		},
		"dscore": func(cfg config.RewardConfig) (Calculator, error) {
			return NewDScore(cfg.Objectives)
		},
	}
)

// Register adds a named calculator factory.  Registration happens at init
// time; overwriting an existing name panics to surface the conflict.
func Register(name string, build Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("reward: calculator registered twice: " + name)
	}
	registry[name] = build
}

// New resolves the configured calculator name.  Unknown names fail at
// startup, never during a rollout.
func New(cfg config.RewardConfig) (Calculator, error) {
	registryMu.RLock()
	build, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeRewardUndefined, "unknown reward calculator").WithDetail(cfg.Name)
	}
	return build(cfg)
}

// Names lists the registered calculator names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
