package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components take the interface rather than touching the global Prometheus
// collectors so tests can inject the no-op implementation.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Run metrics
	IncrementRuns(country, outcome string)
	RecordRunDuration(country string, duration time.Duration)

	// Evaluation metrics
	IncrementEntitiesEvaluated(country, kind string)
	IncrementRecommendations(country, kind, action string)
	IncrementSuppressed(country, reason string)

	// Failure metrics
	IncrementDataErrors(country string)
	IncrementWriteErrors()
	IncrementClamps(kind string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementRuns(country, outcome string) {
	RunCount.WithLabelValues(country, outcome).Inc()
}

func (r *PrometheusRegistry) RecordRunDuration(country string, duration time.Duration) {
	RunDuration.WithLabelValues(country).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementEntitiesEvaluated(country, kind string) {
	EntitiesEvaluated.WithLabelValues(country, kind).Inc()
}

func (r *PrometheusRegistry) IncrementRecommendations(country, kind, action string) {
	RecommendationCount.WithLabelValues(country, kind, action).Inc()
}

func (r *PrometheusRegistry) IncrementSuppressed(country, reason string) {
	SuppressedCount.WithLabelValues(country, reason).Inc()
}

func (r *PrometheusRegistry) IncrementDataErrors(country string) {
	DataErrorCount.WithLabelValues(country).Inc()
}

func (r *PrometheusRegistry) IncrementWriteErrors() {
	WriteErrorCount.Inc()
}

func (r *PrometheusRegistry) IncrementClamps(kind string) {
	ClampCount.WithLabelValues(kind).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementRuns(country, outcome string)                                {}
func (r *NoOpRegistry) RecordRunDuration(country string, duration time.Duration)             {}
func (r *NoOpRegistry) IncrementEntitiesEvaluated(country, kind string)                      {}
func (r *NoOpRegistry) IncrementRecommendations(country, kind, action string)                {}
func (r *NoOpRegistry) IncrementSuppressed(country, reason string)                           {}
func (r *NoOpRegistry) IncrementDataErrors(country string)                                   {}
func (r *NoOpRegistry) IncrementWriteErrors()                                                {}
func (r *NoOpRegistry) IncrementClamps(kind string)                                          {}
