// Package observability exposes Prometheus metrics for the evaluation
// pipeline: cache tier traffic, cloud lookups and engine lifecycle events.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by the evaluation components.
// A nil *Metrics is valid; all record methods become no-ops, which keeps
// tests free of registry setup.
type Metrics struct {
	EvaluationsTotal *prometheus.CounterVec // by source tier
	CacheMisses      *prometheus.CounterVec // by tier
	CloudBackoffs    prometheus.Counter
	EngineRestarts   prometheus.Counter
	EvalDuration     prometheus.Histogram
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chesscoach_evaluations_total",
			Help: "Position evaluations served, labelled by source tier",
		}, []string{"source"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chesscoach_cache_misses_total",
			Help: "Cache tier misses, labelled by tier",
		}, []string{"tier"}),
		CloudBackoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chesscoach_cloud_backoffs_total",
			Help: "Times the cloud evaluation tier entered rate-limit backoff",
		}),
		EngineRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chesscoach_engine_restarts_total",
			Help: "UCI engine process restarts after communication failures",
		}),
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chesscoach_eval_duration_seconds",
			Help:    "Wall time per position evaluation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	collectors := []prometheus.Collector{
		m.EvaluationsTotal, m.CacheMisses, m.CloudBackoffs, m.EngineRestarts, m.EvalDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordEvaluation counts one evaluation served from the given source tier.
func (m *Metrics) RecordEvaluation(source string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(source).Inc()
}

// RecordCacheMiss counts one miss for the given tier.
func (m *Metrics) RecordCacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordCloudBackoff counts one rate-limit backoff.
func (m *Metrics) RecordCloudBackoff() {
	if m == nil {
		return
	}
	m.CloudBackoffs.Inc()
}

// RecordEngineRestart counts one engine process restart.
func (m *Metrics) RecordEngineRestart() {
	if m == nil {
		return
	}
	m.EngineRestarts.Inc()
}

// ObserveEvalDuration records the wall time of one evaluation.
func (m *Metrics) ObserveEvalDuration(seconds float64) {
	if m == nil {
		return
	}
	m.EvalDuration.Observe(seconds)
}
