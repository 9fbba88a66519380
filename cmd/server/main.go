// Package main provides the entry point for the view counter service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/viewcounter/internal/config"
	"github.com/devrev/viewcounter/internal/health"
	"github.com/devrev/viewcounter/internal/logging"
	"github.com/devrev/viewcounter/internal/metrics"
	"github.com/devrev/viewcounter/internal/server"
	"github.com/devrev/viewcounter/internal/service"
	"github.com/devrev/viewcounter/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting view counter",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("read_collection", cfg.Views.ReadCollection),
		zap.String("record_collection", cfg.Views.RecordCollection),
		zap.Duration("dedup_window", cfg.Views.DedupWindow),
	)

	// Initialize metrics
	m := metrics.NewMetrics()

	// Initialize counter store
	backend, err := store.New(cfg.Store, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to create counter store", zap.Error(err))
	}
	counterStore := store.NewInstrumentedStore(backend, m)
	defer counterStore.Close()

	logger.Info("counter store initialized", zap.String("backend", cfg.Store.Backend))

	views := service.NewViewService(counterStore, cfg.Views, m, logger)

	healthCheck := health.NewHealthCheck(views, m, logger)
	defer healthCheck.Stop()

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, views, healthCheck, m, logger)

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
	}

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)
	if metricsServer != nil {
		g.Go(metricsServer.Start)
	}

	g.Go(func() error {
		<-gctx.Done()

		// Graceful shutdown
		logger.Info("initiating graceful shutdown")
		m.SetHealthStatus(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", zap.Error(err))
		}

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown metrics server", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("view counter shutdown complete")
}

