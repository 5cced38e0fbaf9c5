package search

// Observer receives engine events for monitoring.  The Prometheus-backed
// implementation lives in internal/infrastructure/monitoring/prometheus;
// tests and metric-less runs use NopObserver.
type Observer interface {
	IterationCompleted(generation, treeSize int)
	RewardObserved(reward float64)
	CandidateInvalid()
	CandidateRejected(filterName string)
	StallDetected(kind string)
	NodesEvicted(count int)
	CheckpointSaved()
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) IterationCompleted(int, int) {}
func (NopObserver) RewardObserved(float64)      {}
func (NopObserver) CandidateInvalid()           {}
func (NopObserver) CandidateRejected(string)    {}
func (NopObserver) StallDetected(string)        {}
func (NopObserver) NodesEvicted(int)            {}
func (NopObserver) CheckpointSaved()            {}
