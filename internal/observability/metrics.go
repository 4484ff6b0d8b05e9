package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	evaluationsTotal    *prometheus.CounterVec
	evaluationsInFlight prometheus.Gauge
	evaluationScore     *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the HTTP layer and the evaluation service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_evaluations_total",
			Help: "Evaluations by project kind and outcome.",
		}, []string{"kind", "status"})

		evaluationsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grader_evaluations_in_flight",
			Help: "Evaluations currently holding a concurrency slot.",
		})

		evaluationScore = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_evaluation_score_ratio",
			Help:    "Total score divided by total marks for completed evaluations.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"kind"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			evaluationsTotal,
			evaluationsInFlight,
			evaluationScore,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EvaluationsTotal exposes the evaluation outcome counter.
func EvaluationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationsInFlight exposes the gauge of running evaluations.
func EvaluationsInFlight() prometheus.Gauge {
	RegisterMetrics()
	return evaluationsInFlight
}

// EvaluationScore exposes the score ratio histogram.
func EvaluationScore() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationScore
}
