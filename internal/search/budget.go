package search

import (
	"time"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Budget enforces the run's stopping condition: either a wall-clock limit or
// a fixed number of completed generations.  Exactly one mode is active; the
// other mode's configuration field is ignored entirely.  Exhaustion is
// checked once per completed iteration, never mid-iteration.
type Budget struct {
	mode           string
	limit          time.Duration
	maxGenerations int

	elapsedPrior time.Duration
	startedAt    time.Time
	generations  int

	now func() time.Time
}

// NewBudget builds a Budget from the search configuration.
func NewBudget(cfg config.SearchConfig) (*Budget, error) {
	b := &Budget{mode: cfg.ThresholdType, now: time.Now}
	switch cfg.ThresholdType {
	case config.ThresholdTime:
		if cfg.Hours <= 0 {
			return nil, errors.New(errors.ErrCodeBudgetMisconfigured, "hours must be positive in time mode")
		}
		b.limit = time.Duration(cfg.Hours * float64(time.Hour))
	case config.ThresholdGenerationNum:
		if cfg.GenerationNum <= 0 {
			return nil, errors.New(errors.ErrCodeBudgetMisconfigured, "generation_num must be positive in generation mode")
		}
		b.maxGenerations = cfg.GenerationNum
	default:
		return nil, errors.New(errors.ErrCodeBudgetMisconfigured, "threshold_type must be \"time\" or \"generation_num\"").
			WithDetail(cfg.ThresholdType)
	}
	return b, nil
}

// Start marks the beginning (or resumption) of wall-clock accounting.
func (b *Budget) Start() {
	b.startedAt = b.now()
}

// Resume restores the budget consumed by a previous run segment.  A resumed
// time-budgeted run therefore never gets extra wall-clock time.
func (b *Budget) Resume(elapsed time.Duration, generations int) {
	b.elapsedPrior = elapsed
	b.generations = generations
}

// Elapsed returns total wall-clock time consumed across all run segments.
func (b *Budget) Elapsed() time.Duration {
	if b.startedAt.IsZero() {
		return b.elapsedPrior
	}
	return b.elapsedPrior + b.now().Sub(b.startedAt)
}

// Generations returns the number of completed iterations across segments.
func (b *Budget) Generations() int { return b.generations }

// CompleteIteration records one finished MCTS iteration and returns its
// 1-based generation number.
func (b *Budget) CompleteIteration() int {
	b.generations++
	return b.generations
}

// Exhausted reports whether the active budget is spent.
func (b *Budget) Exhausted() bool {
	switch b.mode {
	case config.ThresholdTime:
		return b.Elapsed() >= b.limit
	default:
		return b.generations >= b.maxGenerations
	}
}

// Mode returns the active threshold type.
func (b *Budget) Mode() string { return b.mode }
