package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace replaces the "tipjar" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithLedgerSubsystem names the subsystem of the tip, review and roster
// counters. Collaborator, queue and HTTP collectors keep their own.
func WithLedgerSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by payment,
// publication, repository, queue and worker latency histograms.
func WithLatencyBuckets(ms []float64) Option {
	return func(m *Manager) {
		if len(ms) > 0 {
			m.latencyBuckets = ms
		}
	}
}

// WithAmountBuckets sets the tip amount histogram buckets, in currency units.
func WithAmountBuckets(amounts []float64) Option {
	return func(m *Manager) {
		if len(amounts) > 0 {
			m.amountBuckets = amounts
		}
	}
}

// Disabled registers the collectors but turns every Record/Update helper into a no-op.
func Disabled() Option {
	return func(m *Manager) { m.enabled = false }
}

// WithRefreshInterval sets how often callers should refresh gauges.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithCustomLabels attaches constant labels, e.g. an environment, to every collector.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.customLabels[k] = v
		}
	}
}

// WithMetricPrefix names every metric prefix_name.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) { m.metricPrefix = prefix }
}

// WithPrometheusRegistry registers into registry instead of the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
