// Command watchd serves the watch log REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/watchlog/internal/adapters/http/api"
	"github.com/okian/watchlog/internal/adapters/http/site"
	"github.com/okian/watchlog/internal/adapters/http/swagger"
	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/internal/config"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout          = 10 * time.Second
	writeTimeout         = 10 * time.Second
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 30 * time.Second
	storeMetricsInterval = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		addr       string
		driver     string
		storePath  string
	)

	cmd := &cobra.Command{
		Use:           "watchd",
		Short:         "Serve the watch log REST API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context(), config.WithFile(configFile))
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("store") {
				cfg.StoreDriver = driver
			}
			if flags.Changed("store-path") {
				cfg.StorePath = storePath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			closeLog, err := cfg.SetupLogging(os.Stdout)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			metrics.SetEnabled(cfg.MetricsEnabled)

			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default $WATCHLOG_CONFIG or ~/.watchlog.yaml)")
	flags.StringVar(&addr, "addr", "", "listen address")
	flags.StringVar(&driver, "store", "", "storage driver: memory or sqlite")
	flags.StringVar(&storePath, "store-path", "", "SQLite database file")
	return cmd
}

// openStore opens the store selected by cfg.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		return repository.OpenSQLStore(ctx, cfg.StorePath)
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

// newHandler registers every route on a fresh mux and applies CORS.
func newHandler(ctx context.Context, cfg *config.Config, store repository.Store) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	apiServer := api.NewServer(store, api.WithAllowedOrigins(cfg.CORSOrigins...))
	apiServer.Register(ctx, mux)
	return apiServer.Handler(mux)
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, store),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startStoreMetricsUpdater(gctx, store)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error(ctx, "server stopped with error", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startStoreMetricsUpdater refreshes the store gauges until ctx is done.
func startStoreMetricsUpdater(ctx context.Context, store repository.Store) {
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateStoreMetrics(ctx, store)
		}
	}
}

func updateStoreMetrics(ctx context.Context, store repository.Store) {
	watches, logs, err := store.Count(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return
	}
	metrics.UpdateRepositoryWatches(watches)
	metrics.UpdateRepositoryMeasurements(logs)
}
