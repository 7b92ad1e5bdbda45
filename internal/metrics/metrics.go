// Package metrics provides Prometheus metrics for the credibility pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for jobs, retrieval, classification and the HTTP API.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Job lifecycle
	jobsTotal        *prometheus.CounterVec
	jobsInPhase      *prometheus.GaugeVec
	queueDepth       prometheus.Gauge
	pipelineDuration *prometheus.HistogramVec

	// Analysis
	classifierCallsTotal   *prometheus.CounterVec
	retrievalFailuresTotal *prometheus.CounterVec
	verdictsTotal          *prometheus.CounterVec

	// HTTP API
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates and registers metrics on registry
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the metrics were registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) initMetrics() {
	m.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brutally_honest_jobs_total",
			Help: "Total number of jobs that reached a terminal status",
		},
		[]string{"kind", "status"}, // status: completed, failed
	)

	m.jobsInPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brutally_honest_jobs_in_phase",
			Help: "Number of jobs currently in each running status",
		},
		[]string{"status"},
	)

	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brutally_honest_queue_depth",
			Help: "Number of jobs waiting for a worker",
		},
	)

	m.pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "brutally_honest_pipeline_duration_seconds",
			Help: "Time from job start to terminal status",
			// 0.5s to ~17min
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"kind", "status"},
	)

	m.classifierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brutally_honest_classifier_calls_total",
			Help: "Total number of classifier calls by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: success, error, malformed, fallback
	)

	m.retrievalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brutally_honest_retrieval_source_failures_total",
			Help: "Total number of evidence source failures",
		},
		[]string{"source"},
	)

	m.verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brutally_honest_verdicts_total",
			Help: "Total number of claim verdicts by status",
		},
		[]string{"status"},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brutally_honest_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brutally_honest_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.jobsTotal.Describe(ch)
	m.jobsInPhase.Describe(ch)
	m.queueDepth.Describe(ch)
	m.pipelineDuration.Describe(ch)
	m.classifierCallsTotal.Describe(ch)
	m.retrievalFailuresTotal.Describe(ch)
	m.verdictsTotal.Describe(ch)
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.jobsTotal.Collect(ch)
	m.jobsInPhase.Collect(ch)
	m.queueDepth.Collect(ch)
	m.pipelineDuration.Collect(ch)
	m.classifierCallsTotal.Collect(ch)
	m.retrievalFailuresTotal.Collect(ch)
	m.verdictsTotal.Collect(ch)
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
}

// RecordJobFinished records a job reaching a terminal status
func (m *Metrics) RecordJobFinished(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, status).Inc()
	m.pipelineDuration.WithLabelValues(kind, status).Observe(elapsed.Seconds())
}

// EnterPhase moves a job from one running status to another; empty names are ignored
func (m *Metrics) EnterPhase(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.jobsInPhase.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.jobsInPhase.WithLabelValues(to).Inc()
	}
}

// SetQueueDepth updates the pending queue gauge
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// RecordClassifierCall records one classifier attempt outcome
func (m *Metrics) RecordClassifierCall(provider, outcome string) {
	if m == nil {
		return
	}
	m.classifierCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordRetrievalFailure records an evidence source failure
func (m *Metrics) RecordRetrievalFailure(source string) {
	if m == nil {
		return
	}
	m.retrievalFailuresTotal.WithLabelValues(source).Inc()
}

// RecordVerdict records a final claim verdict
func (m *Metrics) RecordVerdict(status string) {
	if m == nil {
		return
	}
	m.verdictsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records a served API request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
