package search

import (
	"math"
	"sort"
	"sync"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Policy scores a child node for selection.  Higher is better; ties are
// broken by the tree in child insertion order.
type Policy interface {
	// Score computes the selection score of a child given its parent's visit
	// count, the child's visit count and cumulative reward, its model prior
	// and the exploration constant.
	Score(parentVisits, childVisits int, childReward, prior, cVal float64) float64
}

// UCB1 is the default selection policy:
//
//	mean_reward + c_val * sqrt(ln(parent.visits) / child.visits)
//
// Unvisited children score +Inf so that every child is explored once before
// exploitation begins.
type UCB1 struct{}

// Score implements Policy.
func (UCB1) Score(parentVisits, childVisits int, childReward, _ float64, cVal float64) float64 {
	if childVisits == 0 {
		return math.Inf(1)
	}
	mean := childReward / float64(childVisits)
	return mean + cVal*math.Sqrt(math.Log(float64(parentVisits))/float64(childVisits))
}

// PUCT is an alternative policy weighting exploration by the model prior:
//
//	mean_reward + c_val * prior * sqrt(parent.visits) / (1 + child.visits)
type PUCT struct{}

// Score implements Policy.
func (PUCT) Score(parentVisits, childVisits int, childReward, prior, cVal float64) float64 {
	var mean float64
	if childVisits > 0 {
		mean = childReward / float64(childVisits)
	}
	return mean + cVal*prior*math.Sqrt(float64(parentVisits))/float64(1+childVisits)
}

// ─────────────────────────────────────────────────────────────────────────────
// Policy registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	policyMu       sync.RWMutex
	policyRegistry = map[string]func() Policy{
		"ucb1": func() Policy { return UCB1{} },
		"puct": func() Policy { return PUCT{} },
	}
)

// RegisterPolicy adds a named policy constructor.  Registration happens at
// init time; overwriting an existing name panics to surface the conflict.
func RegisterPolicy(name string, build func() Policy) {
	policyMu.Lock()
	defer policyMu.Unlock()
	if _, dup := policyRegistry[name]; dup {
		panic("search: policy registered twice: " + name)
	}
	policyRegistry[name] = build
}

// NewPolicy resolves a configured policy name to an implementation.  Unknown
// names fail at startup, never at selection time.
func NewPolicy(name string) (Policy, error) {
	policyMu.RLock()
	build, ok := policyRegistry[name]
	policyMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidParam, "unknown selection policy").WithDetail(name)
	}
	return build(), nil
}

// PolicyNames lists the registered policy names, sorted.
func PolicyNames() []string {
	policyMu.RLock()
	defer policyMu.RUnlock()
	names := make([]string, 0, len(policyRegistry))
	for name := range policyRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
