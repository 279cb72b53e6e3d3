package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RepetitionsTotal tracks completed repetitions per variant and outcome.
	RepetitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaoslab_repetitions_total",
			Help: "Total number of completed repetitions",
		},
		[]string{"variant", "outcome"},
	)

	// InjectionsTotal tracks injected failures per kind.
	InjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaoslab_injections_total",
			Help: "Total number of injected failures",
		},
		[]string{"kind"},
	)

	// BreakerTransitionsTotal tracks circuit breaker state transitions.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaoslab_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"to"},
	)

	// PlaybookLookupsTotal tracks strategy store lookups by hit/miss.
	PlaybookLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaoslab_playbook_lookups_total",
			Help: "Total number of playbook lookups",
		},
		[]string{"result"},
	)

	// RepetitionDuration tracks wall-clock duration per repetition.
	RepetitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaoslab_repetition_duration_seconds",
			Help:    "Repetition duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	// SinkWritesTotal tracks durable sink appends.
	SinkWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chaoslab_sink_writes_total",
			Help: "Total number of result rows written to the durable sink",
		},
	)
)
