package metrics

import (
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace replaces the "marksense" metric namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem inserts a subsystem between namespace and metric name.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the store and
// HTTP latency histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.latencyBuckets = buckets
		}
	}
}

// WithMetricsEnabled turns recording on or off. A disabled manager still
// registers its collectors so scrapes keep a stable shape.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithRefreshInterval sets how often polled gauges such as snapshot_dates
// are refreshed.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithConstLabel attaches name=value to every metric, e.g. the history
// backend in use.
func WithConstLabel(name, value string) Option {
	return func(m *Manager) {
		if name == "" || value == "" {
			return
		}
		labels := maps.Clone(m.constLabels)
		if labels == nil {
			labels = prometheus.Labels{}
		}
		labels[name] = value
		m.constLabels = labels
	}
}

// WithPrometheusRegistry registers the collectors on registry instead of
// the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Configure rebuilds the global manager from opts on a fresh registry.
// It must run before any handler or store records a metric.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	customRegistry = reg
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(reg)}, opts...)...)
	runtimeOnce = new(sync.Once)
}
