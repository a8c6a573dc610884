package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Metrics variables - these will be initialized by InitMetrics
	RequestsTotal           *prometheus.CounterVec
	RequestDuration         *prometheus.HistogramVec
	DelayRequestedSeconds   *prometheus.HistogramVec
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration prometheus.Histogram
	SleepQueriesTotal       *prometheus.CounterVec
	SleepQueryDuration      prometheus.Histogram
	RateLimitExceeded       *prometheus.CounterVec
	ErrorsTotal             *prometheus.CounterVec
)

// InitMetrics initializes metrics with a specific registry
func InitMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		return fmt.Errorf("registry cannot be nil")
	}

	factory := promauto.With(reg)

	RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_requests_total",
			Help: "Total number of requests received",
		},
		[]string{"service", "status"},
	)

	RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_request_duration_seconds",
			Help:    "Duration of requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"service"},
	)

	DelayRequestedSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_delay_requested_seconds",
			Help:    "Delay requested by clients in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"service"},
	)

	UpstreamRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_upstream_requests_total",
			Help: "Total number of requests sent to the delay service",
		},
		[]string{"status"},
	)

	UpstreamRequestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_upstream_request_duration_seconds",
			Help:    "Duration of delay service fetches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	SleepQueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_sleep_queries_total",
			Help: "Total number of pg_sleep queries issued",
		},
		[]string{"status"},
	)

	SleepQueryDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_sleep_query_duration_seconds",
			Help:    "Duration of pg_sleep queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	RateLimitExceeded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_rate_limit_exceeded_total",
			Help: "Total number of requests that exceeded rate limits",
		},
		[]string{"type"},
	)

	ErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)

	return nil
}

// Helper functions for recording metrics

// RecordRequest records a completed request with its HTTP status
func RecordRequest(service, status string) {
	RequestsTotal.WithLabelValues(service, status).Inc()
}

// RecordRequestDuration records how long a request took end to end
func RecordRequestDuration(service string, seconds float64) {
	RequestDuration.WithLabelValues(service).Observe(seconds)
}

// RecordDelayRequested records the delay a client asked for
func RecordDelayRequested(service string, seconds float64) {
	DelayRequestedSeconds.WithLabelValues(service).Observe(seconds)
}

// RecordUpstreamRequest records the outcome and duration of a delay service fetch
func RecordUpstreamRequest(status string, seconds float64) {
	UpstreamRequestsTotal.WithLabelValues(status).Inc()
	UpstreamRequestDuration.Observe(seconds)
}

// RecordSleepQuery records the outcome and duration of a pg_sleep query
func RecordSleepQuery(status string, seconds float64) {
	SleepQueriesTotal.WithLabelValues(status).Inc()
	SleepQueryDuration.Observe(seconds)
}

// RecordError records an error by classification
func RecordError(errType string) {
	ErrorsTotal.WithLabelValues(errType).Inc()
}
