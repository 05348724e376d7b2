package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/adapters/history/backends"
	"github.com/okian/marksense/internal/adapters/http/api"
	"github.com/okian/marksense/internal/adapters/http/site"
	"github.com/okian/marksense/internal/adapters/http/swagger"
	service "github.com/okian/marksense/internal/app"
	"github.com/okian/marksense/internal/config"
	"github.com/okian/marksense/pkg/logger"
	"github.com/okian/marksense/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metricsOptions(cfg)...)
	metrics.RegisterRuntimeCollectors()

	svc, handler, err := newApp(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go startSnapshotMetricsUpdater(ctx, svc, loggerInstance)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store_backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newApp opens the configured history store, starts the service and
// builds the HTTP routes around it.
func newApp(ctx context.Context, cfg *config.Config, l logger.Logger) (*service.Service, http.Handler, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, nil, err
	}
	backend, err := backends.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := history.New(backend, schema, nil,
		append(backends.Options(cfg), history.WithLogger(l))...)

	svc := service.New(schema, store,
		service.WithLogger(l.Named("service")),
		service.WithMaxCompare(cfg.MaxCompare),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithLogger(l.Named("api"))).Register(ctx, mux)
	return svc, mux, nil
}

// metricsOptions maps the metrics settings of cfg onto the global manager.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefreshInterval),
		metrics.WithConstLabel("store_backend", cfg.StoreBackend),
	}
}

// startSnapshotMetricsUpdater keeps the saved-dates gauge current.
func startSnapshotMetricsUpdater(ctx context.Context, svc *service.Service, l logger.Logger) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Dates(ctx); err != nil && ctx.Err() == nil {
				l.Debug(ctx, "snapshot metrics refresh failed", logger.Error(err))
			}
		}
	}
}
