// Package config defines the service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory recompute queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps how many projects may have a recompute pending.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxWatchlistLimit caps GET /watchlist?limit.
	MaxWatchlistLimit int `koanf:"max_watchlist_limit"`

	// RecentWindowDays is the trailing window for feedback and check-ins.
	RecentWindowDays int `koanf:"recent_window_days"`

	// MissingCheckInDays flags projects on the dashboard with no check-in
	// within this many days.
	MissingCheckInDays int `koanf:"missing_checkin_days"`

	// Store selects the backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the postgres connection string.
	DatabaseURL string `koanf:"database_url"`

	// KafkaBrokers is a comma-separated broker list; empty disables publishing.
	KafkaBrokers string `koanf:"kafka_brokers"`

	KafkaTopic string `koanf:"kafka_topic"`

	// MetricsNamespace and MetricsSubsystem name every exported series,
	// <namespace>_<subsystem>_<metric>.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLatencyBuckets is a comma-separated list of millisecond bucket
	// bounds; empty keeps the built-in buckets.
	MetricsLatencyBuckets string `koanf:"metrics_latency_buckets"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         100_000,
		MaxWatchlistLimit:  100,
		RecentWindowDays:   28,
		MissingCheckInDays: 7,
		Store:              StoreMemory,
		KafkaTopic:         "project-health",
		MetricsNamespace:   "pulse",
		MetricsSubsystem:   "health",
	}
}

// RecentWindow returns RecentWindowDays as a duration.
func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.RecentWindowDays) * 24 * time.Hour
}

// MissingCheckInWindow returns MissingCheckInDays as a duration.
func (c *Config) MissingCheckInWindow() time.Duration {
	return time.Duration(c.MissingCheckInDays) * 24 * time.Hour
}

// Brokers splits KafkaBrokers, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// LatencyBuckets parses MetricsLatencyBuckets. Bounds must be positive.
func (c *Config) LatencyBuckets() ([]float64, error) {
	var out []float64
	for _, raw := range strings.Split(c.MetricsLatencyBuckets, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: metrics_latency_buckets: bad bound %q", ErrInvalidConfig, raw)
		}
		out = append(out, v)
	}
	return out, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxWatchlistLimit <= 0:
		return fmt.Errorf("%w: max_watchlist_limit must be positive", ErrInvalidConfig)
	case c.RecentWindowDays <= 0:
		return fmt.Errorf("%w: recent_window_days must be positive", ErrInvalidConfig)
	case c.MissingCheckInDays <= 0:
		return fmt.Errorf("%w: missing_checkin_days must be positive", ErrInvalidConfig)
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	if len(c.Brokers()) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafka_topic is required with kafka_brokers", ErrInvalidConfig)
	}
	if c.MetricsNamespace == "" || c.MetricsSubsystem == "" {
		return fmt.Errorf("%w: metrics_namespace and metrics_subsystem must not be empty", ErrInvalidConfig)
	}
	if _, err := c.LatencyBuckets(); err != nil {
		return err
	}
	return nil
}
