// Package metrics provides Prometheus metrics for the MarkSense service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets spans sub-millisecond memory reads up to
// retried remote store calls, in milliseconds.
var defaultLatencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only bucket layout

// Store operation outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
	OutcomeMismatch    = "schema_mismatch"
	OutcomeNotFound    = "not_found"
)

// Manager manages all Prometheus metrics for the MarkSense service.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	enabled         bool
	refreshInterval time.Duration
	constLabels     prometheus.Labels
	registry        prometheus.Registerer

	// Ranking
	rostersRanked      prometheus.Counter
	rosterSize         prometheus.Gauge
	validationFailures *prometheus.CounterVec

	// History store
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	storeRetries    *prometheus.CounterVec
	snapshotDates   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec
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
		namespace:       "marksense",
		latencyBuckets:  defaultLatencyBuckets,
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval reports how often gauges fed by polling should be updated.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether observations are recorded.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.rostersRanked = auto.NewCounter(m.counterOpts(
		"rosters_ranked_total", "Total number of rosters ranked"))
	m.rosterSize = auto.NewGauge(m.gaugeOpts(
		"roster_size", "Number of students in the current session roster"))
	m.validationFailures = auto.NewCounterVec(m.counterOpts(
		"validation_failures_total", "Rejected student records by offending field"),
		[]string{"field"})

	m.storeOperations = auto.NewCounterVec(m.counterOpts(
		"store_operations_total", "History store operations by operation and outcome"),
		[]string{"op", "outcome"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts(
		"store_latency_milliseconds", "History store operation latency in milliseconds, retries included"),
		[]string{"op"})
	m.storeRetries = auto.NewCounterVec(m.counterOpts(
		"store_retries_total", "History store retries after a transient failure"),
		[]string{"op"})
	m.snapshotDates = auto.NewGauge(m.gaugeOpts(
		"snapshot_dates", "Number of distinct dates saved in history"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts(
		"http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts(
		"http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts(
		"errors_by_endpoint_total", "Errors by endpoint, method and error code"),
		[]string{"endpoint", "method", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts(
		"errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"})
}

// RecordRosterRanked counts a ranking pass and records its size.
func (m *Manager) RecordRosterRanked(size int) {
	if !m.enabled {
		return
	}
	m.rostersRanked.Inc()
	m.rosterSize.Set(float64(size))
}

// RecordValidationFailure counts a rejected record by field.
func (m *Manager) RecordValidationFailure(field string) {
	if !m.enabled {
		return
	}
	m.validationFailures.WithLabelValues(field).Inc()
}

// RecordStoreOperation counts a finished store operation and its latency.
func (m *Manager) RecordStoreOperation(op, outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.storeOperations.WithLabelValues(op, outcome).Inc()
	m.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreRetry counts a retry of op.
func (m *Manager) RecordStoreRetry(op string) {
	if !m.enabled {
		return
	}
	m.storeRetries.WithLabelValues(op).Inc()
}

// UpdateSnapshotDates sets the number of saved dates.
func (m *Manager) UpdateSnapshotDates(count int) {
	if !m.enabled {
		return
	}
	m.snapshotDates.Set(float64(count))
}

// RecordHTTPRequest increments the HTTP request counter.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !m.enabled {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !m.enabled {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	if !m.enabled {
		return
	}
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// Package-level helpers on the global manager.

// RecordRosterRanked counts a ranking pass on the global manager.
func RecordRosterRanked(size int) { globalManager.RecordRosterRanked(size) }

// RecordValidationFailure counts a rejected record on the global manager.
func RecordValidationFailure(field string) { globalManager.RecordValidationFailure(field) }

// RecordStoreOperation records a store operation on the global manager.
func RecordStoreOperation(op, outcome string, latencyMs float64) {
	globalManager.RecordStoreOperation(op, outcome, latencyMs)
}

// RecordStoreRetry counts a store retry on the global manager.
func RecordStoreRetry(op string) { globalManager.RecordStoreRetry(op) }

// UpdateSnapshotDates sets the saved date count on the global manager.
func UpdateSnapshotDates(count int) { globalManager.UpdateSnapshotDates(count) }

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.RecordErrorByType(errorType, severity)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval reports the polling interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

// Enabled reports whether the global manager records observations.
func Enabled() bool { return globalManager.Enabled() }

var runtimeOnce = new(sync.Once) //nolint:gochecknoglobals // reset by Configure

// RegisterRuntimeCollectors adds the Go runtime and process collectors to
// the custom registry. Later calls are no-ops.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
