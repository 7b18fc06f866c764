package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	pipelineRunsTotal      *prometheus.CounterVec
	pipelineRunSeconds     *prometheus.HistogramVec
	pipelineRetriesTotal   *prometheus.CounterVec
	degradedResultsTotal   prometheus.Counter
	queueRedeliveriesTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the API surface
// and the correction pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corrigo_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corrigo_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corrigo_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		pipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corrigo_pipeline_runs_total",
			Help: "Correction pipeline attempts by final outcome.",
		}, []string{"outcome"})

		pipelineRunSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corrigo_pipeline_run_seconds",
			Help:    "Wall-clock duration of correction pipeline attempts.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"})

		pipelineRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corrigo_pipeline_retries_total",
			Help: "Pipeline attempts rescheduled for a later retry, by failing stage.",
		}, []string{"state"})

		degradedResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corrigo_pipeline_degraded_results_total",
			Help: "Submissions closed with a degraded correction after exhausting retries.",
		})

		queueRedeliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corrigo_queue_redeliveries_total",
			Help: "Submission jobs republished to the queue for retry.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			pipelineRunsTotal,
			pipelineRunSeconds,
			pipelineRetriesTotal,
			degradedResultsTotal,
			queueRedeliveriesTotal,
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

// PipelineRuns exposes the counter for pipeline attempts by outcome.
func PipelineRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return pipelineRunsTotal
}

// PipelineDuration exposes the duration histogram for pipeline attempts.
func PipelineDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return pipelineRunSeconds
}

// PipelineRetries exposes the counter for rescheduled pipeline attempts.
func PipelineRetries() *prometheus.CounterVec {
	RegisterMetrics()
	return pipelineRetriesTotal
}

// DegradedResults exposes the counter for degraded corrections.
func DegradedResults() prometheus.Counter {
	RegisterMetrics()
	return degradedResultsTotal
}

// QueueRedeliveries exposes the counter for republished jobs.
func QueueRedeliveries() prometheus.Counter {
	RegisterMetrics()
	return queueRedeliveriesTotal
}
