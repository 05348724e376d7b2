// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Configuration is loaded once at start and passed explicitly into constructors.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/marksense/internal/domain/model"
)

// Store backend keys.
const (
	BackendMemory   = "memory"
	BackendXLSX     = "xlsx"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Subjects lists the configured subjects in column order.
	Subjects []string `koanf:"subjects"`

	// MaxMarks is the upper bound for every subject without an override.
	MaxMarks float64 `koanf:"max_marks"`

	// SubjectMaxMarks overrides MaxMarks per subject.
	SubjectMaxMarks map[string]float64 `koanf:"subject_max_marks"`

	// StoreBackend picks the history backend: memory, xlsx, sqlite, postgres, redis.
	StoreBackend string `koanf:"store_backend"`

	StoreXLSXPath   string `koanf:"store_xlsx_path"`
	StoreXLSXSheet  string `koanf:"store_xlsx_sheet"`
	StoreSQLitePath string `koanf:"store_sqlite_path"`

	StorePostgresDSN string `koanf:"store_postgres_dsn"`

	StoreRedisURL    string `koanf:"store_redis_url"`
	StoreRedisPrefix string `koanf:"store_redis_prefix"`

	// StoreTimeout bounds every backend attempt.
	StoreTimeout time.Duration `koanf:"store_timeout"`

	// StoreRetryAttempts is the total number of attempts per store operation.
	StoreRetryAttempts       int           `koanf:"store_retry_attempts"`
	StoreRetryInitialBackoff time.Duration `koanf:"store_retry_initial_backoff"`
	StoreRetryMaxBackoff     time.Duration `koanf:"store_retry_max_backoff"`

	// MaxCompare caps GET /compare?names.
	MaxCompare int `koanf:"max_compare"`

	// MetricsEnabled turns recording of service metrics on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshInterval paces gauges that are fed by polling.
	MetricsRefreshInterval time.Duration `koanf:"metrics_refresh_interval"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		Subjects:                 slices.Clone(model.DefaultSubjects),
		MaxMarks:                 model.DefaultMaxMarks,
		SubjectMaxMarks:          map[string]float64{},
		StoreBackend:             BackendXLSX,
		StoreXLSXPath:            "marksense.xlsx",
		StoreXLSXSheet:           "History",
		StoreSQLitePath:          "marksense.db",
		StoreRedisPrefix:         "marksense",
		StoreTimeout:             10 * time.Second,
		StoreRetryAttempts:       3,
		StoreRetryInitialBackoff: 200 * time.Millisecond,
		StoreRetryMaxBackoff:     2 * time.Second,
		MaxCompare:               5,
		MetricsEnabled:           true,
		MetricsRefreshInterval:   10 * time.Second,
	}
}

// Schema builds the subject schema described by c.
func (c *Config) Schema() (model.Schema, error) {
	s, err := model.NewSchema(c.Subjects, c.MaxMarks, c.SubjectMaxMarks)
	if err != nil {
		return model.Schema{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return s, nil
}

// Validate checks c for values the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.Schema(); err != nil {
		return err
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendXLSX:
		if strings.TrimSpace(c.StoreXLSXPath) == "" {
			return invalid("store_xlsx_path must not be empty")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.StoreSQLitePath) == "" {
			return invalid("store_sqlite_path must not be empty")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.StorePostgresDSN) == "" {
			return invalid("store_postgres_dsn must not be empty")
		}
	case BackendRedis:
		if strings.TrimSpace(c.StoreRedisURL) == "" {
			return invalid("store_redis_url must not be empty")
		}
	default:
		return invalid("unknown store_backend %q", c.StoreBackend)
	}

	if c.StoreTimeout <= 0 {
		return invalid("store_timeout must be positive")
	}
	if c.StoreRetryAttempts < 1 {
		return invalid("store_retry_attempts must be at least 1")
	}
	if c.StoreRetryInitialBackoff <= 0 || c.StoreRetryMaxBackoff < c.StoreRetryInitialBackoff {
		return invalid("store retry backoff must be positive and max >= initial")
	}
	if c.MaxCompare < 1 {
		return invalid("max_compare must be at least 1")
	}
	if c.MetricsRefreshInterval <= 0 {
		return invalid("metrics_refresh_interval must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
