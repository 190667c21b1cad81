// Package metrics provides Prometheus metrics for watchlog clients and the reference backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for watchlog.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Fetch coordination - one label value per view
	fetchIssued     *prometheus.CounterVec
	fetchApplied    *prometheus.CounterVec
	fetchSuperseded *prometheus.CounterVec
	fetchFailed     *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec

	// Mutations
	mutations          *prometheus.CounterVec
	validationRejected *prometheus.CounterVec
	selectionChanges   *prometheus.CounterVec
	reportsDropped     prometheus.Counter

	// Event loop queue
	queueCapacity          prometheus.Gauge
	queueSize              prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	loopTaskLatency        prometheus.Histogram
	loopTaskPanics         prometheus.Counter

	// Backend client
	backendRequests        *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	// Reference backend HTTP server
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryWatches      prometheus.Gauge
	repositoryMeasurements prometheus.Gauge
	repositoryQueryLatency *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "watchlog",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics on the configured registry.
func (m *Manager) initializeMetrics() {
	m.fetchIssued = m.counterVec("fetch_issued_total", "Fetches issued per view", "view")
	m.fetchApplied = m.counterVec("fetch_applied_total", "Fetch results applied to a view", "view")
	m.fetchSuperseded = m.counterVec("fetch_superseded_total", "Fetch results dropped because the view key moved on", "view")
	m.fetchFailed = m.counterVec("fetch_failed_total", "Fetches that failed while still current", "view")
	m.fetchLatency = m.histogramVec("fetch_latency_milliseconds", "Time from issue to completion of a fetch", "view")

	m.mutations = m.counterVec("mutations_total", "Mutations by operation and outcome", "op", "outcome")
	m.validationRejected = m.counterVec("validation_rejected_total", "Mutations rejected before any backend call", "op")
	m.selectionChanges = m.counterVec("selection_changes_total", "Selection writes by kind", "kind")
	m.reportsDropped = m.counter("reports_dropped_total", "Error reports dropped because the reporter was full")

	m.queueCapacity = m.gauge("queue_capacity", "Event loop queue capacity")
	m.queueSize = m.gauge("queue_size", "Tasks waiting on the event loop")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Tasks enqueued on the event loop")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Tasks dequeued by the event loop")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Tasks rejected by the event loop queue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds")
	m.loopTaskLatency = m.histogram("loop_task_latency_milliseconds", "Time spent running one event loop task")
	m.loopTaskPanics = m.counter("loop_task_panics_total", "Event loop tasks that panicked")

	m.backendRequests = m.counterVec("backend_requests_total", "Backend requests by route, method and status", "route", "method", "status_code")
	m.backendRequestDuration = m.histogramVec("backend_request_duration_milliseconds", "Backend request duration in milliseconds", "route", "method", "status_code")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.repositoryWatches = m.gauge("repository_watches", "Watches stored")
	m.repositoryMeasurements = m.gauge("repository_measurements", "Measurements stored")
	m.repositoryQueryLatency = m.histogramVec("repository_query_latency_milliseconds", "Repository operation latency in milliseconds", "op")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
}

func active() bool {
	return globalManager != nil && globalManager.enabled
}

// Fetch coordination.

// RecordFetchIssued counts a fetch issued for view.
func RecordFetchIssued(view string) {
	if active() {
		globalManager.fetchIssued.WithLabelValues(view).Inc()
	}
}

// RecordFetchApplied counts a fetch result applied to view.
func RecordFetchApplied(view string) {
	if active() {
		globalManager.fetchApplied.WithLabelValues(view).Inc()
	}
}

// RecordFetchSuperseded counts a stale fetch result that was dropped.
func RecordFetchSuperseded(view string) {
	if active() {
		globalManager.fetchSuperseded.WithLabelValues(view).Inc()
	}
}

// RecordFetchFailed counts a failed fetch that was still current.
func RecordFetchFailed(view string) {
	if active() {
		globalManager.fetchFailed.WithLabelValues(view).Inc()
	}
}

// RecordFetchLatency records fetch latency in milliseconds.
func RecordFetchLatency(view string, latencyMs float64) {
	if active() {
		globalManager.fetchLatency.WithLabelValues(view).Observe(latencyMs)
	}
}

// Mutations.

// RecordMutation counts a mutation attempt with its outcome ("ok" or "error").
func RecordMutation(op, outcome string) {
	if active() {
		globalManager.mutations.WithLabelValues(op, outcome).Inc()
	}
}

// RecordValidationRejected counts a mutation rejected locally.
func RecordValidationRejected(op string) {
	if active() {
		globalManager.validationRejected.WithLabelValues(op).Inc()
	}
}

// RecordSelectionChange counts a selection change of the given kind.
func RecordSelectionChange(kind string) {
	if active() {
		globalManager.selectionChanges.WithLabelValues(kind).Inc()
	}
}

// RecordReportDropped counts an error report that could not be delivered.
func RecordReportDropped() {
	if active() {
		globalManager.reportsDropped.Inc()
	}
}

// Event loop queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if active() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if active() {
		globalManager.queueSize.Set(float64(size))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if active() {
		globalManager.queueEnqueueRate.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if active() {
		globalManager.queueDequeueRate.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if active() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if active() {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// RecordLoopTaskLatency records how long one event loop task ran.
func RecordLoopTaskLatency(latencyMs float64) {
	if active() {
		globalManager.loopTaskLatency.Observe(latencyMs)
	}
}

// RecordLoopTaskPanic counts a recovered task panic.
func RecordLoopTaskPanic() {
	if active() {
		globalManager.loopTaskPanics.Inc()
	}
}

// Backend client.

// RecordBackendRequest records one backend round trip.
func RecordBackendRequest(route, method, statusCode string, durationMs float64) {
	if active() {
		globalManager.backendRequests.WithLabelValues(route, method, statusCode).Inc()
		globalManager.backendRequestDuration.WithLabelValues(route, method, statusCode).Observe(durationMs)
	}
}

// Reference backend server.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if active() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if active() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Repository.

// UpdateRepositoryWatches sets the stored watch count.
func UpdateRepositoryWatches(count int) {
	if active() {
		globalManager.repositoryWatches.Set(float64(count))
	}
}

// UpdateRepositoryMeasurements sets the stored measurement count.
func UpdateRepositoryMeasurements(count int) {
	if active() {
		globalManager.repositoryMeasurements.Set(float64(count))
	}
}

// RecordRepositoryQueryLatency records repository operation latency.
func RecordRepositoryQueryLatency(op string, latencyMs float64) {
	if active() {
		globalManager.repositoryQueryLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// RecordErrorByComponent records an error for a component and type.
func RecordErrorByComponent(component, errorType string) {
	if active() {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// SetEnabled turns global metric recording on or off.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
