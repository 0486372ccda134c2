// Package metrics provides Prometheus metrics for the pulse health service.
package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring
	recomputations     *prometheus.CounterVec
	recomputeErrors    prometheus.Counter
	recomputeLatency   prometheus.Histogram
	recomputeCoalesced prometheus.Counter
	statusTransitions  *prometheus.CounterVec
	projectsByStatus   *prometheus.GaugeVec
	totalProjects      prometheus.Gauge

	// Intake
	recordsSubmitted *prometheus.CounterVec
	recordsRejected  *prometheus.CounterVec

	// Pipeline
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter

	// Storage and events
	storeLatency       *prometheus.HistogramVec
	eventsPublished    prometheus.Counter
	eventPublishErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init rebuilds the package collectors on a fresh registry with opts
// applied. Call it once at startup, before anything records or GetRegistry
// is handed to an exporter.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(slices.Clone(opts), WithPrometheusRegistry(registry))
	globalManager = NewManager(opts...)
	customRegistry = registry
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulse",
		subsystem:        "health",
		histogramBuckets: DefaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.recomputations = m.counterVec("recomputations_total",
		"Health recomputations by trigger", "trigger")
	m.recomputeErrors = m.counter("recompute_errors_total",
		"Health recomputations that failed")
	m.recomputeLatency = m.histogram("recompute_latency_milliseconds",
		"Load, score and persist latency of one recomputation")
	m.recomputeCoalesced = m.counter("recompute_coalesced_total",
		"Recompute requests merged into an already pending one")
	m.statusTransitions = m.counterVec("status_transitions_total",
		"Project status changes", "from", "to")
	m.projectsByStatus = m.gaugeVec("projects", "Projects by current status", "status")
	m.totalProjects = m.gauge("projects_total", "Total number of projects")

	m.recordsSubmitted = m.counterVec("records_submitted_total",
		"Accepted submissions by kind", "kind")
	m.recordsRejected = m.counterVec("records_rejected_total",
		"Rejected submissions by kind and reason", "kind", "reason")

	m.queueSize = m.gauge("queue_size", "Pending recompute requests in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Recompute requests enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Recompute requests dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Failed enqueue attempts")
	m.workerCount = m.gauge("worker_count", "Running recompute workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a worker spends on one request")
	m.workerErrors = m.counter("worker_errors_total", "Requests a worker failed to process")

	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Store operation latency", "op")
	m.eventsPublished = m.counter("events_published_total", "Health change events published")
	m.eventPublishErrors = m.counter("event_publish_errors_total",
		"Health change events that failed to publish")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time")
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// RecordRecompute counts a recomputation and its latency.
func RecordRecompute(trigger string, latencyMs float64) {
	globalManager.recomputations.WithLabelValues(trigger).Inc()
	globalManager.recomputeLatency.Observe(latencyMs)
}

// RecordRecomputeError increments the failed recomputation counter.
func RecordRecomputeError() {
	globalManager.recomputeErrors.Inc()
}

// RecordRecomputeCoalesced counts a request absorbed by a pending one.
func RecordRecomputeCoalesced() {
	globalManager.recomputeCoalesced.Inc()
}

// RecordStatusTransition counts a status change.
func RecordStatusTransition(from, to string) {
	globalManager.statusTransitions.WithLabelValues(from, to).Inc()
}

// UpdateProjectsByStatus sets the per-status project gauge.
func UpdateProjectsByStatus(status string, count int) {
	globalManager.projectsByStatus.WithLabelValues(status).Set(float64(count))
}

// UpdateTotalProjects sets the project count.
func UpdateTotalProjects(count int) {
	globalManager.totalProjects.Set(float64(count))
}

// RecordSubmission counts an accepted feedback, check-in or risk.
func RecordSubmission(kind string) {
	globalManager.recordsSubmitted.WithLabelValues(kind).Inc()
}

// RecordRejection counts a submission refused by validation or uniqueness.
func RecordRejection(kind, reason string) {
	globalManager.recordsRejected.WithLabelValues(kind, reason).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func RecordQueueEnqueue()      { globalManager.queueEnqueue.Inc() }
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueDequeue counts a request a worker took off the queue.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// UpdateWorkerCount sets the running worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long a worker spent on a request.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

func RecordEventPublished()    { globalManager.eventsPublished.Inc() }
func RecordEventPublishError() { globalManager.eventPublishErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
