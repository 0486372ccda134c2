package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLatencyBuckets bound every latency histogram. All latencies are
// recorded in milliseconds.
var DefaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // shared default

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace prefixes every series, e.g. "pulse" in pulse_health_projects_total.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the second name segment of every series.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets replaces the millisecond buckets of the latency
// histograms. Unsorted input is sorted; empty input keeps the default.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			b := slices.Clone(buckets)
			slices.Sort(b)
			m.histogramBuckets = slices.Compact(b)
		}
	}
}

// WithPrometheusRegistry sets the registry metrics are registered on.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
