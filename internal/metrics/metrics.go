// Package metrics собирает prometheus-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minibackup"

// Metrics: набор метрик HTTP-слоя, ограничителя и очистки.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	RateLimited    prometheus.Counter
	SweepRuns      prometheus.Counter
	SweepFailures  prometheus.Counter
	ObjectsExpired prometheus.Counter
	RatesPruned    prometheus.Counter
	SweepDuration  prometheus.Histogram
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent answering HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Mutating requests rejected by the per-address limiter.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Retention sweeps started.",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "failures_total",
			Help:      "Retention sweeps that ended with an error.",
		}),
		ObjectsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "objects_expired_total",
			Help:      "Objects removed because they were unused past the retention window.",
		}),
		RatesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "rate_entries_pruned_total",
			Help:      "Stale rate log entries removed.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of retention sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	reg.MustRegister(
		m.Requests,
		m.Duration,
		m.RateLimited,
		m.SweepRuns,
		m.SweepFailures,
		m.ObjectsExpired,
		m.RatesPruned,
		m.SweepDuration,
	)
	return m
}
