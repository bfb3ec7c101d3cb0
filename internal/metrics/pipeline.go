package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage", "status"},
	)

	RetrievalPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_passes_total",
			Help:      "Retrieval passes by kind and outcome",
		},
		[]string{"pass", "status"}, // status: ok / error / skipped
	)

	RetrievalPassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_pass_duration_seconds",
			Help:      "Retrieval pass duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"pass"},
	)

	DegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_degraded_total",
			Help:      "Optional fields or passes dropped because of an error",
		},
		[]string{"field"},
	)

	LookupCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_cache_total",
			Help:      "Entity lookup cache events",
		},
		[]string{"result"}, // "hit" / "miss" / "refresh" / "invalidated"
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answered requests by outcome",
		},
		[]string{"outcome"}, // "ok" / "degraded" / failure kind
	)
)
