// Package config provides configuration loading for governd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/governd/internal/logging"
)

// Config is the root configuration for the governd daemon.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Policy    PolicyConfig    `koanf:"policy"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Undo      UndoConfig      `koanf:"undo"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// PolicyConfig configures the validator chain and rule loading.
type PolicyConfig struct {
	RulesPath     string  `koanf:"rules_path"`
	WatchRules    bool    `koanf:"watch_rules"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// StoreConfig selects the task persistence backend.
type StoreConfig struct {
	Driver string `koanf:"driver"` // "memory" or "sqlite"
	Path   string `koanf:"path"`   // sqlite database file
}

// NATSConfig configures event publishing.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	ServiceName  string  `koanf:"service_name"`
	SampleRatio  float64 `koanf:"sample_ratio"`
	Insecure     bool    `koanf:"insecure"`
	MetricPeriod int     `koanf:"metric_period_seconds"`
}

// UndoConfig configures the compensation runner.
type UndoConfig struct {
	WorkspaceRoot string        `koanf:"workspace_root"`
	Timeout       time.Duration `koanf:"timeout"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required when store.driver is sqlite")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}
	if c.Policy.RatePerSecond < 0 {
		return fmt.Errorf("policy.rate_per_second must not be negative, got %v", c.Policy.RatePerSecond)
	}
	if c.Policy.RateBurst < 0 {
		return fmt.Errorf("policy.rate_burst must not be negative, got %d", c.Policy.RateBurst)
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry.enabled is true")
		}
		if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
			return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %v", c.Telemetry.SampleRatio)
		}
	}
	if c.Undo.Timeout < 0 {
		return fmt.Errorf("undo.timeout must not be negative, got %v", c.Undo.Timeout)
	}
	return nil
}
