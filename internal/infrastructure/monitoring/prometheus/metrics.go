// Package prometheus exposes search engine metrics over the standard
// /metrics endpoint.  The engine reports events through search.Observer; the
// adapter here translates them into counters, gauges and histograms on a
// private registry.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "molgen"

// RewardBuckets covers the shaped reward range plus the failure sentinel.
var RewardBuckets = []float64{-1, 0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// SearchMetrics holds every metric the engine reports.
type SearchMetrics struct {
	registry *prometheus.Registry

	IterationsTotal    prometheus.Counter
	Generations        prometheus.Gauge
	TreeSize           prometheus.Gauge
	Reward             prometheus.Histogram
	BestReward         prometheus.Gauge
	InvalidTotal       prometheus.Counter
	RejectedTotal      *prometheus.CounterVec
	StallsTotal        *prometheus.CounterVec
	EvictedNodesTotal  prometheus.Counter
	CheckpointsTotal   prometheus.Counter
}

// NewSearchMetrics registers the metric set on a fresh registry, together
// with the standard process and Go runtime collectors.
func NewSearchMetrics(runID string) *SearchMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"run_id": runID}

	m := &SearchMetrics{
		registry: registry,
		IterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "iterations_total",
			Help:        "Completed search iterations, including abandoned ones",
			ConstLabels: constLabels,
		}),
		Generations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "generations",
			Help:        "Valid molecules generated so far",
			ConstLabels: constLabels,
		}),
		TreeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "tree_nodes",
			Help:        "Live nodes in the search tree",
			ConstLabels: constLabels,
		}),
		Reward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "reward",
			Help:        "Observed rollout rewards",
			Buckets:     RewardBuckets,
			ConstLabels: constLabels,
		}),
		BestReward: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "best_reward",
			Help:        "Highest reward observed in the run",
			ConstLabels: constLabels,
		}),
		InvalidTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "candidates_invalid_total",
			Help:        "Candidates that failed to decode",
			ConstLabels: constLabels,
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "candidates_rejected_total",
			Help:        "Candidates rejected by a structural filter",
			ConstLabels: constLabels,
		}, []string{"filter"}),
		StallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "stalls_total",
			Help:        "Stall guard triggers by kind",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		EvictedNodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "evicted_nodes_total",
			Help:        "Nodes removed by low-reward subtree eviction",
			ConstLabels: constLabels,
		}),
		CheckpointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "checkpoints_total",
			Help:        "Checkpoints written",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.IterationsTotal,
		m.Generations,
		m.TreeSize,
		m.Reward,
		m.BestReward,
		m.InvalidTotal,
		m.RejectedTotal,
		m.StallsTotal,
		m.EvictedNodesTotal,
		m.CheckpointsTotal,
	)
	return m
}

// Registry exposes the private registry for the HTTP handler.
func (m *SearchMetrics) Registry() *prometheus.Registry { return m.registry }
