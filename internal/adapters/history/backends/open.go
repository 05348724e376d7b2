// Package backends opens the history backend selected by configuration.
package backends

import (
	"context"
	"fmt"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/adapters/history/memstore"
	"github.com/okian/marksense/internal/adapters/history/pgstore"
	"github.com/okian/marksense/internal/adapters/history/redisstore"
	"github.com/okian/marksense/internal/adapters/history/sqlitestore"
	"github.com/okian/marksense/internal/adapters/history/xlsxstore"
	"github.com/okian/marksense/internal/config"
)

// Open returns the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (history.Backend, error) {
	var (
		b   history.Backend
		err error
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		b = memstore.New()
	case config.BackendXLSX:
		b, err = asBackend(xlsxstore.New(cfg.StoreXLSXPath, cfg.StoreXLSXSheet))
	case config.BackendSQLite:
		b, err = asBackend(sqlitestore.Open(cfg.StoreSQLitePath))
	case config.BackendPostgres:
		b, err = asBackend(pgstore.Open(ctx, cfg.StorePostgresDSN))
	case config.BackendRedis:
		b, err = asBackend(redisstore.Open(ctx, cfg.StoreRedisURL, cfg.StoreRedisPrefix))
	default:
		return nil, fmt.Errorf("%w: unknown store_backend %q", config.ErrInvalidConfig, cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s history store: %w", cfg.StoreBackend, err)
	}
	return b, nil
}

// asBackend keeps a failed constructor from producing a typed nil Backend.
func asBackend[B history.Backend](b B, err error) (history.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Options maps the store settings of cfg onto adapter options.
func Options(cfg *config.Config) []history.Option {
	return []history.Option{
		history.WithTimeout(cfg.StoreTimeout),
		history.WithRetryAttempts(cfg.StoreRetryAttempts),
		history.WithInitialBackoff(cfg.StoreRetryInitialBackoff),
		history.WithMaxBackoff(cfg.StoreRetryMaxBackoff),
	}
}
