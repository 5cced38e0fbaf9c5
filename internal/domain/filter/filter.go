// Package filter implements the molecule acceptance filters applied between
// decoding and reward calculation.  Filters are pure predicates over the
// molecular graph; the evaluation pipeline decides whether a failed filter
// rejects the candidate or merely scales its reward.
package filter

import (
	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Filter is one acceptance check.  Evaluate returns true when the molecule
// passes.
type Filter interface {
	Name() string
	Evaluate(m *molecule.Molecule) bool
}

// Registered filter names, in the order they are usually chained.
const (
	NameLipinski  = "lipinski"
	NameRadical   = "radical"
	NameSAScore   = "sascore"
	NameRingSize  = "ring_size"
	NameDuplicate = "duplicate"
)

// Deps carries the external collaborators some filters need.
type Deps struct {
	// Seen backs the duplicate filter.  When nil an in-memory store scoped
	// to this process is used.
	Seen   SeenStore
	Logger logging.Logger
}

// Build assembles the filter chain named by cfg.Use, in order.  Unknown
// names fail so that a typo in the configuration is caught at startup rather
// than silently weakening the chain.
func Build(cfg config.FiltersConfig, deps Deps) ([]Filter, error) {
	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	chain := make([]Filter, 0, len(cfg.Use))
	for _, name := range cfg.Use {
		switch name {
		case NameLipinski:
			f, err := NewLipinski(cfg.Lipinski.Variant)
			if err != nil {
				return nil, err
			}
			chain = append(chain, f)
		case NameRadical:
			chain = append(chain, NewRadical())
		case NameSAScore:
			chain = append(chain, NewSAScore(cfg.SAScore.Threshold))
		case NameRingSize:
			chain = append(chain, NewRingSize(cfg.RingSize.Threshold))
		case NameDuplicate:
			store := deps.Seen
			if store == nil {
				store = NewMemorySeenStore()
			}
			chain = append(chain, NewDuplicate(store, log))
		default:
			return nil, errors.New(errors.ErrCodeInvalidParam, "unknown filter").WithDetail(name)
		}
	}
	return chain, nil
}

// Names lists the filters Build understands.
func Names() []string {
	return []string{NameLipinski, NameRadical, NameSAScore, NameRingSize, NameDuplicate}
}
