// Package metrics provides Prometheus metrics for the wanistats service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second

	millisecondsPerSecond = 1000.0
)

// Manager manages all Prometheus metrics for the wanistats service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	syncBuckets      []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Sync metrics - upstream record ingestion
	syncsCompleted prometheus.Counter
	syncsSkipped   prometheus.Counter
	syncFailures   prometheus.Counter
	syncDuration   prometheus.Histogram
	recordsSynced  *prometheus.CounterVec

	// Report metrics - statistics computation
	reportsComputed  prometheus.Counter
	reportFailures   prometheus.Counter
	sectionFailures  *prometheus.CounterVec
	reportDuration   prometheus.Histogram
	malformedRecords *prometheus.CounterVec

	// Guard metrics - per-account run serialization
	guardWaitDuration prometheus.Histogram
	guardTimeouts     prometheus.Counter
	guardBusy         prometheus.Counter
	guardForceRelease prometheus.Counter

	// Upstream metrics - WaniKani API client
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Queue metrics - refresh task queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueRejections    prometheus.Counter
	refreshesCoalesced prometheus.Counter

	// Worker metrics - refresh worker pool
	workerCount  prometheus.Gauge
	workerActive prometheus.Gauge
	taskDuration prometheus.Histogram
	workerErrors prometheus.Counter

	// Store metrics - record store performance
	storeQueryLatency prometheus.Histogram
	storeWriteLatency prometheus.Histogram
	storeErrors       prometheus.Counter
	trackedAccounts   prometheus.Gauge
	recordsPurged     prometheus.Counter

	// Cache metrics - computed report cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Export metrics
	exportsGenerated prometheus.Counter

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wanistats",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		syncBuckets:      []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// name applies the configured metric prefix.
func (m *Manager) name(base string) string {
	return m.metricPrefix + base
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Disabled metrics land on a throwaway registry so the exposed
	// endpoint stays empty.
	registry := m.registry
	if !m.enabled {
		registry = prometheus.NewRegistry()
	}
	if len(m.customLabels) > 0 {
		registry = prometheus.WrapRegistererWith(prometheus.Labels(m.customLabels), registry)
	}
	auto := promauto.With(registry)

	// Sync metrics - upstream record ingestion
	m.syncsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("syncs_total"),
		Help:      "Total number of completed record syncs",
	})

	m.syncsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("syncs_skipped_total"),
		Help:      "Total number of syncs skipped because stored records were fresh enough",
	})

	m.syncFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("sync_failures_total"),
		Help:      "Total number of failed record syncs",
	})

	m.syncDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("sync_duration_seconds"),
		Help:      "Histogram of full record sync duration in seconds",
		Buckets:   m.syncBuckets,
	})

	m.recordsSynced = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("records_synced_total"),
			Help:      "Total number of records written during syncs by record kind",
		},
		[]string{"kind"},
	)

	// Report metrics - statistics computation
	m.reportsComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("reports_computed_total"),
		Help:      "Total number of statistics reports computed",
	})

	m.reportFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("report_failures_total"),
		Help:      "Total number of report computations that produced no report",
	})

	m.sectionFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("report_section_failures_total"),
			Help:      "Total number of report sections dropped from otherwise successful reports",
		},
		[]string{"section"},
	)

	m.reportDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("report_duration_milliseconds"),
		Help:      "Histogram of report computation duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.malformedRecords = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("malformed_records_total"),
			Help:      "Total number of stored records skipped as malformed (indicates data quality)",
		},
		[]string{"kind"},
	)

	// Guard metrics - per-account run serialization
	m.guardWaitDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("guard_wait_duration_milliseconds"),
		Help:      "Time spent waiting to acquire a per-account guard in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.guardTimeouts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("guard_wait_timeouts_total"),
		Help:      "Total number of guard acquisitions abandoned after the wait timeout",
	})

	m.guardBusy = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("guard_busy_total"),
		Help:      "Total number of non-blocking guard acquisitions rejected while held",
	})

	m.guardForceRelease = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("guard_force_releases_total"),
		Help:      "Total number of guard holds released by the watchdog (indicates wedged runs)",
	})

	// Upstream metrics - WaniKani API client
	m.upstreamRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("upstream_requests_total"),
			Help:      "Total number of WaniKani API requests by resource and status",
		},
		[]string{"resource", "status"},
	)

	m.upstreamLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("upstream_request_duration_milliseconds"),
			Help:      "WaniKani API request duration in milliseconds by resource",
			Buckets:   m.histogramBuckets,
		},
		[]string{"resource"},
	)

	// Queue metrics - refresh task queue
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("queue_size"),
		Help:      "Current size of the refresh task queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("queue_capacity"),
		Help:      "Maximum refresh task queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("queue_utilization_ratio"),
		Help:      "Refresh task queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("queue_enqueue_total"),
		Help:      "Total number of refresh tasks enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("queue_dequeue_total"),
		Help:      "Total number of refresh tasks dequeued",
	})

	m.queueRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("queue_rejections_total"),
		Help:      "Total number of refresh tasks rejected because the queue was full",
	})

	m.refreshesCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("refreshes_coalesced_total"),
		Help:      "Total number of refresh requests dropped because one was already queued for the account",
	})

	// Worker metrics - refresh worker pool
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("worker_count"),
		Help:      "Current number of refresh workers (processing capacity)",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("worker_active_count"),
		Help:      "Number of workers currently processing a refresh task",
	})

	m.taskDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("worker_task_duration_milliseconds"),
		Help:      "Refresh task processing duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("worker_errors_total"),
		Help:      "Total number of refresh tasks that ended in an error",
	})

	// Store metrics - record store performance
	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("store_query_latency_milliseconds"),
		Help:      "Record store read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("store_write_latency_milliseconds"),
		Help:      "Record store write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("store_errors_total"),
		Help:      "Total number of record store operation errors",
	})

	m.trackedAccounts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("tracked_accounts"),
		Help:      "Total number of accounts with stored records (business scale)",
	})

	m.recordsPurged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("records_purged_total"),
		Help:      "Total number of stale records removed by the retention janitor",
	})

	// Cache metrics - computed report cache
	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("report_cache_hits_total"),
		Help:      "Total number of report requests served from the cache",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("report_cache_misses_total"),
		Help:      "Total number of report requests that required recomputation",
	})

	// HTTP performance metrics - user experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("http_requests_total"),
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("http_request_duration_milliseconds"),
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Export metrics
	m.exportsGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("exports_generated_total"),
		Help:      "Total number of spreadsheet exports generated",
	})

	// System performance metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("system_memory_usage_bytes"),
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      m.name("system_goroutine_count"),
		Help:      "Number of goroutines",
	})
}

// RefreshInterval reports how often gauge metrics should be resampled.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// Sync Metrics Functions.

// RecordSyncCompleted increments the completed syncs counter.
func RecordSyncCompleted() {
	globalManager.syncsCompleted.Inc()
}

// RecordSyncSkipped increments the skipped syncs counter.
func RecordSyncSkipped() {
	globalManager.syncsSkipped.Inc()
}

// RecordSyncFailure increments the failed syncs counter.
func RecordSyncFailure() {
	globalManager.syncFailures.Inc()
}

// RecordSyncDuration records the duration of a full record sync.
func RecordSyncDuration(elapsed time.Duration) {
	globalManager.syncDuration.Observe(elapsed.Seconds())
}

// RecordRecordsSynced adds to the synced records counter for a record kind.
func RecordRecordsSynced(kind string, count int) {
	globalManager.recordsSynced.WithLabelValues(kind).Add(float64(count))
}

// Report Metrics Functions.

// RecordReportComputed increments the computed reports counter.
func RecordReportComputed() {
	globalManager.reportsComputed.Inc()
}

// RecordReportFailure increments the failed reports counter.
func RecordReportFailure() {
	globalManager.reportFailures.Inc()
}

// RecordSectionFailure increments the dropped section counter for a section.
func RecordSectionFailure(section string) {
	globalManager.sectionFailures.WithLabelValues(section).Inc()
}

// RecordReportDuration records report computation duration.
func RecordReportDuration(elapsed time.Duration) {
	globalManager.reportDuration.Observe(elapsed.Seconds() * millisecondsPerSecond)
}

// RecordMalformedRecords adds to the malformed records counter for a record kind.
func RecordMalformedRecords(kind string, count int) {
	globalManager.malformedRecords.WithLabelValues(kind).Add(float64(count))
}

// Guard Metrics Functions.

// RecordGuardWait records how long an acquisition waited before succeeding.
func RecordGuardWait(wait time.Duration) {
	globalManager.guardWaitDuration.Observe(wait.Seconds() * millisecondsPerSecond)
}

// RecordGuardTimeout increments the guard wait timeout counter.
func RecordGuardTimeout() {
	globalManager.guardTimeouts.Inc()
}

// RecordGuardBusy increments the guard busy rejection counter.
func RecordGuardBusy() {
	globalManager.guardBusy.Inc()
}

// RecordGuardForceRelease increments the guard force release counter.
func RecordGuardForceRelease() {
	globalManager.guardForceRelease.Inc()
}

// Upstream Metrics Functions.

// RecordUpstreamRequest records a WaniKani API request outcome.
func RecordUpstreamRequest(resource, status string) {
	globalManager.upstreamRequests.WithLabelValues(resource, status).Inc()
}

// RecordUpstreamLatency records WaniKani API request duration for a resource.
func RecordUpstreamLatency(resource string, elapsed time.Duration) {
	globalManager.upstreamLatency.WithLabelValues(resource).Observe(elapsed.Seconds() * millisecondsPerSecond)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueRejection increments the full-queue rejection counter.
func RecordQueueRejection() {
	globalManager.queueRejections.Inc()
}

// RecordRefreshCoalesced increments the coalesced refresh counter.
func RecordRefreshCoalesced() {
	globalManager.refreshesCoalesced.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActive sets the number of workers processing a task.
func UpdateWorkerActive(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordTaskDuration records refresh task processing duration.
func RecordTaskDuration(elapsed time.Duration) {
	globalManager.taskDuration.Observe(elapsed.Seconds() * millisecondsPerSecond)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Store Metrics Functions.

// RecordStoreQueryLatency records record store read latency.
func RecordStoreQueryLatency(elapsed time.Duration) {
	globalManager.storeQueryLatency.Observe(elapsed.Seconds() * millisecondsPerSecond)
}

// RecordStoreWriteLatency records record store write latency.
func RecordStoreWriteLatency(elapsed time.Duration) {
	globalManager.storeWriteLatency.Observe(elapsed.Seconds() * millisecondsPerSecond)
}

// RecordStoreError increments the store error counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// UpdateTrackedAccounts sets the tracked accounts gauge.
func UpdateTrackedAccounts(count int) {
	globalManager.trackedAccounts.Set(float64(count))
}

// RecordRecordsPurged adds to the purged records counter.
func RecordRecordsPurged(count int64) {
	globalManager.recordsPurged.Add(float64(count))
}

// Cache Metrics Functions.

// RecordCacheHit increments the report cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the report cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, elapsed time.Duration) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).
		Observe(elapsed.Seconds() * millisecondsPerSecond)
}

// Export Metrics Functions.

// RecordExportGenerated increments the generated exports counter.
func RecordExportGenerated() {
	globalManager.exportsGenerated.Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
