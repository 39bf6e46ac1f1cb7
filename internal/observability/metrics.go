package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	scorerRequestsTotal   *prometheus.CounterVec
	ingestStudentsTotal   *prometheus.CounterVec
	alertEmailsTotal      *prometheus.CounterVec
	dispatchDuration      prometheus.Histogram
	schedulerFiringsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the alert pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		scorerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_scorer_requests_total",
			Help: "Risk scoring passes partitioned by the scorer that produced the result.",
		}, []string{"source"})

		ingestStudentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_ingest_students_total",
			Help: "Students processed by bulk roster ingest, by outcome.",
		}, []string{"result"})

		alertEmailsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_emails_total",
			Help: "Alert emails attempted, by audience and outcome.",
		}, []string{"audience", "status"})

		dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_dispatch_duration_seconds",
			Help:    "Duration of a full alert dispatch.",
			Buckets: prometheus.DefBuckets,
		})

		schedulerFiringsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_scheduler_firings_total",
			Help: "Scheduled alert dispatches, by outcome.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			scorerRequestsTotal,
			ingestStudentsTotal,
			alertEmailsTotal,
			dispatchDuration,
			schedulerFiringsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ScorerRequests counts scoring passes by source ("remote" or "fallback").
func ScorerRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return scorerRequestsTotal
}

// IngestStudents counts per-student ingest outcomes.
func IngestStudents() *prometheus.CounterVec {
	RegisterMetrics()
	return ingestStudentsTotal
}

// AlertEmails counts alert sends by audience ("student", "mentor") and status.
func AlertEmails() *prometheus.CounterVec {
	RegisterMetrics()
	return alertEmailsTotal
}

// DispatchDuration observes end-to-end dispatch latency.
func DispatchDuration() prometheus.Histogram {
	RegisterMetrics()
	return dispatchDuration
}

// SchedulerFirings counts scheduled dispatch outcomes.
func SchedulerFirings() *prometheus.CounterVec {
	RegisterMetrics()
	return schedulerFiringsTotal
}
