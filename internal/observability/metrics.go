package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidtuner_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// recommendation runs per country and outcome (ok, failed, conflict)
	RunCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_runs_total",
			Help: "Total recommendation runs",
		},
		[]string{"country", "outcome"},
	)

	// wall time of a full per-country run
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidtuner_run_duration_seconds",
			Help:    "Duration of recommendation runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"country"},
	)

	// entities evaluated per run, labelled by kind
	EntitiesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_entities_evaluated_total",
			Help: "Total targeting entities evaluated",
		},
		[]string{"country", "kind"},
	)

	// recommendations generated, labelled by kind and action
	RecommendationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_recommendations_total",
			Help: "Total recommendations generated",
		},
		[]string{"country", "kind", "action"},
	)

	// entities suppressed before a recommendation, labelled by reason
	// (cooldown, insufficient_data, in_band, no_target)
	SuppressedCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_suppressed_total",
			Help: "Total entities suppressed by reason",
		},
		[]string{"country", "reason"},
	)

	// per-entity aggregation failures
	DataErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_data_errors_total",
			Help: "Total per-entity aggregation errors",
		},
		[]string{"country"},
	)

	// recommendation persistence failures after retry
	WriteErrorCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidtuner_write_errors_total",
			Help: "Total recommendation persistence errors",
		},
	)

	// out-of-bounds proposals clamped by the safeguard
	ClampCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidtuner_clamps_total",
			Help: "Total proposals clamped to the allowed bounds",
		},
		[]string{"kind"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		RunCount,
		RunDuration,
		EntitiesEvaluated,
		RecommendationCount,
		SuppressedCount,
		DataErrorCount,
		WriteErrorCount,
		ClampCount,
	)
}
