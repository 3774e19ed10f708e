// Package metrics provides Prometheus metrics for the tipjar service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	amountBuckets   []float64
	enabled         bool
	refreshInterval time.Duration
	customLabels    map[string]string
	metricPrefix    string
	registry        prometheus.Registerer

	// Ledger
	tipsRecorded      prometheus.Counter
	tipAmount         prometheus.Histogram
	reviewsAttached   *prometheus.CounterVec
	duplicatePayments prometheus.Counter
	rosterAdditions   prometheus.Counter
	rosterConflicts   prometheus.Counter

	// Collaborators
	paymentLatency     prometheus.Histogram
	paymentFailures    prometheus.Counter
	publicationLatency prometheus.Histogram
	publications       *prometheus.CounterVec

	// Repository
	repositoryRecords *prometheus.GaugeVec
	repositoryLatency *prometheus.HistogramVec

	// Publication outbox
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "tipjar",
		subsystem:       "ledger",
		latencyBuckets:  []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		amountBuckets:   []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		customLabels:    make(map[string]string),
		registry:        prometheus.DefaultRegisterer,
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

func (m *Manager) counter(sub, name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: sub, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(sub, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: sub, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(sub, name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: sub, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(sub, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: sub, Name: m.name(name), Help: help, ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	latencyMs := m.latencyBuckets

	m.tipsRecorded = m.counter(m.subsystem, "tips_recorded_total", "Total number of tips appended to the ledger")
	m.tipAmount = m.histogram(m.subsystem, "tip_amount", "Distribution of recorded tip amounts", m.amountBuckets)
	m.reviewsAttached = m.counterVec(m.subsystem, "reviews_attached_total", "Reviews attached to tips by visibility", "visibility")
	m.duplicatePayments = m.counter(m.subsystem, "duplicate_payments_total", "Tip submissions rejected as replayed payments")
	m.rosterAdditions = m.counter(m.subsystem, "roster_additions_total", "Workers added to a business roster")
	m.rosterConflicts = m.counter(m.subsystem, "roster_conflicts_total", "Roster additions rejected as duplicates")

	m.paymentLatency = m.histogram("payment", "latency_ms", "Payment authorization latency in milliseconds", latencyMs)
	m.paymentFailures = m.counter("payment", "failures_total", "Payment authorizations that failed")
	m.publicationLatency = m.histogram("publication", "latency_ms", "Review publication latency in milliseconds", latencyMs)
	m.publications = m.counterVec("publication", "requests_total", "Review publication attempts by outcome", "outcome")

	m.repositoryRecords = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "repository", Name: m.name("records"), Help: "Stored records by kind", ConstLabels: m.customLabels,
	}, []string{"kind"})
	m.repositoryLatency = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "repository", Name: m.name("op_latency_ms"), Help: "Repository operation latency in milliseconds",
		ConstLabels: m.customLabels, Buckets: latencyMs,
	}, []string{"op"})

	m.queueSize = m.gauge("queue", "size", "Publication requests waiting in the outbox")
	m.queueCapacity = m.gauge("queue", "capacity", "Capacity of the publication outbox")
	m.queueUtilization = m.gauge("queue", "utilization_ratio", "Outbox size divided by capacity")
	m.queueEnqueue = m.counter("queue", "enqueue_total", "Publication requests enqueued")
	m.queueDequeue = m.counter("queue", "dequeue_total", "Publication requests dequeued")
	m.queueEnqueueErrors = m.counter("queue", "enqueue_errors_total", "Publication requests rejected by the outbox")
	m.queueProcessingLatency = m.histogram("queue", "enqueue_latency_ms", "Time spent enqueuing in milliseconds", latencyMs)

	m.workerCount = m.gauge("worker", "count", "Configured publication workers")
	m.workerActiveCount = m.gauge("worker", "active", "Workers currently delivering a publication")
	m.workerIdleCount = m.gauge("worker", "idle", "Workers waiting for work")
	m.workerProcessingLatency = m.histogram("worker", "processing_latency_ms", "Time to deliver one publication in milliseconds", latencyMs)
	m.workerErrors = m.counter("worker", "errors_total", "Publications that failed in a worker")

	m.httpRequests = m.counterVec("http", "requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", Name: m.name("request_duration_seconds"), Help: "HTTP request duration in seconds",
		ConstLabels: m.customLabels, Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors", "by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors", "by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors", "by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system", "memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system", "goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system", "gc_pause_ms", "Most recent GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordTipRecorded counts a ledger append and observes its amount.
func RecordTipRecorded(amount float64) {
	if !on() {
		return
	}
	globalManager.tipsRecorded.Inc()
	globalManager.tipAmount.Observe(amount)
}

// RecordReviewAttached counts a review by its visibility class.
func RecordReviewAttached(visibility string) {
	if on() {
		globalManager.reviewsAttached.WithLabelValues(visibility).Inc()
	}
}

// RecordDuplicatePayment counts a replayed payment reference.
func RecordDuplicatePayment() {
	if on() {
		globalManager.duplicatePayments.Inc()
	}
}

// RecordRosterAddition counts a new roster entry.
func RecordRosterAddition() {
	if on() {
		globalManager.rosterAdditions.Inc()
	}
}

// RecordRosterConflict counts a rejected duplicate roster entry.
func RecordRosterConflict() {
	if on() {
		globalManager.rosterConflicts.Inc()
	}
}

// RecordPaymentLatency records payment authorization latency in milliseconds.
func RecordPaymentLatency(latencyMs float64) {
	if on() {
		globalManager.paymentLatency.Observe(latencyMs)
	}
}

// RecordPaymentFailure counts a failed authorization.
func RecordPaymentFailure() {
	if on() {
		globalManager.paymentFailures.Inc()
	}
}

// RecordPublicationLatency records review publication latency in milliseconds.
func RecordPublicationLatency(latencyMs float64) {
	if on() {
		globalManager.publicationLatency.Observe(latencyMs)
	}
}

// RecordPublication counts a publication attempt, outcome is "published",
// "failed" or "dropped".
func RecordPublication(outcome string) {
	if on() {
		globalManager.publications.WithLabelValues(outcome).Inc()
	}
}

// UpdateRepositoryRecords sets the number of stored records of a kind.
func UpdateRepositoryRecords(kind string, count int) {
	if on() {
		globalManager.repositoryRecords.WithLabelValues(kind).Set(float64(count))
	}
}

// Record kinds reported by UpdateRepositoryCounts.
const (
	RecordsProfiles      = "profiles"
	RecordsRosterEntries = "roster_entries"
	RecordsTips          = "tips"
)

// UpdateRepositoryCounts sets the stored record gauges for every kind at once.
func UpdateRepositoryCounts(profiles, rosterEntries, tips int) {
	UpdateRepositoryRecords(RecordsProfiles, profiles)
	UpdateRepositoryRecords(RecordsRosterEntries, rosterEntries)
	UpdateRepositoryRecords(RecordsTips, tips)
}

// RecordRepositoryLatency records the latency of a repository operation.
func RecordRepositoryLatency(op string, latencyMs float64) {
	if on() {
		globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// UpdateQueueSize sets the current outbox size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the outbox capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets size/capacity of the outbox.
func UpdateQueueUtilization(utilization float64) {
	if on() {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue counts a successful enqueue.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueue.Inc()
	}
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeue.Inc()
	}
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records enqueue latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if on() {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	if on() {
		globalManager.workerIdleCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records publication delivery time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a failed delivery.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	if on() {
		globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
	}
}

// RecordErrorByEndpoint counts an error returned by an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if on() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// RefreshInterval returns how often gauges should be refreshed by callers.
func RefreshInterval() time.Duration {
	if globalManager == nil {
		return defaultRefreshInterval
	}
	return globalManager.refreshInterval
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
