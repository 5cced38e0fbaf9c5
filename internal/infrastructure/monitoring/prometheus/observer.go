package prometheus

import (
	"sync"
)

// Observer adapts SearchMetrics to the engine's observer interface.  The
// engine calls it from the search goroutine only, but BestReward tracking is
// guarded anyway so the observer can be shared with a recorder.
type Observer struct {
	metrics *SearchMetrics

	mu   sync.Mutex
	best float64
	seen bool
}

// NewObserver wraps a metric set.
func NewObserver(metrics *SearchMetrics) *Observer {
	return &Observer{metrics: metrics}
}

func (o *Observer) IterationCompleted(generation, treeSize int) {
	o.metrics.IterationsTotal.Inc()
	o.metrics.Generations.Set(float64(generation))
	o.metrics.TreeSize.Set(float64(treeSize))
}

func (o *Observer) RewardObserved(reward float64) {
	o.metrics.Reward.Observe(reward)

	o.mu.Lock()
	if !o.seen || reward > o.best {
		o.best = reward
		o.seen = true
		o.metrics.BestReward.Set(reward)
	}
	o.mu.Unlock()
}

func (o *Observer) CandidateInvalid() {
	o.metrics.InvalidTotal.Inc()
}

func (o *Observer) CandidateRejected(filterName string) {
	o.metrics.RejectedTotal.WithLabelValues(filterName).Inc()
}

func (o *Observer) StallDetected(kind string) {
	o.metrics.StallsTotal.WithLabelValues(kind).Inc()
}

func (o *Observer) NodesEvicted(count int) {
	o.metrics.EvictedNodesTotal.Add(float64(count))
}

func (o *Observer) CheckpointSaved() {
	o.metrics.CheckpointsTotal.Inc()
}
