// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a YAML file and TIPJAR_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Storage backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the ledger backend: memory or postgres.
	Store string `koanf:"store"`

	// Postgres connection settings, used when Store is postgres.
	PostgresDSN              string `koanf:"postgres_dsn"`
	PostgresMaxConns         int    `koanf:"postgres_max_conns"`
	PostgresMinConns         int    `koanf:"postgres_min_conns"`
	PostgresConnectTimeoutMS int    `koanf:"postgres_connect_timeout_ms"`

	// PublishQueueSize bounds the review publication outbox.
	PublishQueueSize int `koanf:"publish_queue_size"`

	// PublishWorkerCount sets the number of publication workers.
	PublishWorkerCount int `koanf:"publish_worker_count"`

	// IdempotencySize bounds the payment reference cache.
	IdempotencySize int `koanf:"idempotency_size"`

	// Simulated collaborator latency bounds.
	PublishLatencyMinMS int `koanf:"publish_latency_min_ms"`
	PublishLatencyMaxMS int `koanf:"publish_latency_max_ms"`
	PaymentLatencyMinMS int `koanf:"payment_latency_min_ms"`
	PaymentLatencyMaxMS int `koanf:"payment_latency_max_ms"`

	// MaxLeaderboardLimit caps GET /businesses/{id}/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RecentTipsLimit is the number of tips shown on a worker dashboard.
	RecentTipsLimit int `koanf:"recent_tips_limit"`
}

// New creates a Config populated with defaults. The context is unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		Store:                    StoreMemory,
		PostgresMaxConns:         10,
		PostgresMinConns:         1,
		PostgresConnectTimeoutMS: 5_000,
		PublishQueueSize:         10_000,
		PublishWorkerCount:       runtime.NumCPU() * 2,
		IdempotencySize:          100_000,
		PublishLatencyMinMS:      200,
		PublishLatencyMaxMS:      1_000,
		PaymentLatencyMinMS:      50,
		PaymentLatencyMaxMS:      200,
		MaxLeaderboardLimit:      100,
		RecentTipsLimit:          10,
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && strings.TrimSpace(c.PostgresDSN) == "":
		return fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
	case c.PublishQueueSize <= 0:
		return fmt.Errorf("%w: publish_queue_size must be positive", ErrInvalidConfig)
	case c.PublishWorkerCount <= 0:
		return fmt.Errorf("%w: publish_worker_count must be positive", ErrInvalidConfig)
	case c.IdempotencySize <= 0:
		return fmt.Errorf("%w: idempotency_size must be positive", ErrInvalidConfig)
	case c.PublishLatencyMinMS < 0 || c.PublishLatencyMaxMS < c.PublishLatencyMinMS:
		return fmt.Errorf("%w: publish latency range [%d,%d]", ErrInvalidConfig, c.PublishLatencyMinMS, c.PublishLatencyMaxMS)
	case c.PaymentLatencyMinMS < 0 || c.PaymentLatencyMaxMS < c.PaymentLatencyMinMS:
		return fmt.Errorf("%w: payment latency range [%d,%d]", ErrInvalidConfig, c.PaymentLatencyMinMS, c.PaymentLatencyMaxMS)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.RecentTipsLimit <= 0:
		return fmt.Errorf("%w: recent_tips_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
