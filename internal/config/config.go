// Package config defines watchlog configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and WATCHLOG_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Store drivers understood by the reference backend.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration shared by the client and the reference backend.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" output.
	LogFormat string `koanf:"log_format"`

	// LogFile redirects logs to a file. The terminal UI always needs one.
	LogFile string `koanf:"log_file"`

	// BackendURL is the base URL of the watch log REST API.
	BackendURL string `koanf:"backend_url"`

	// RequestTimeoutMS bounds each backend request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// DefaultWatch names the watch CLI commands act on when none is given.
	DefaultWatch string `koanf:"default_watch"`

	// QueueSize bounds the client event loop queue.
	QueueSize int `koanf:"queue_size"`

	// Addr configures the reference backend listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// StoreDriver selects the reference backend storage: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database file.
	StorePath string `koanf:"store_path"`

	// CORSOrigins lists origins the reference backend allows.
	CORSOrigins []string `koanf:"cors_origins"`

	// MetricsEnabled toggles Prometheus recording.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config holding defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		BackendURL:       "http://localhost:8000",
		RequestTimeoutMS: 30_000,
		QueueSize:        1024,
		Addr:             ":8000",
		StoreDriver:      StoreMemory,
		StorePath:        "watchlog.db",
		CORSOrigins:      []string{"http://localhost:3000"},
		MetricsEnabled:   true,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend_url %q must be an absolute URL", ErrInvalidConfig, c.BackendURL)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("%w: backend_url %q must not have a path", ErrInvalidConfig, c.BackendURL)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("%w: store_path must not be empty for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}
