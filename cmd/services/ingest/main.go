package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openpowerquality/opq-sub000/internal/aggregation"
	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/handlers"
	"github.com/openpowerquality/opq-sub000/internal/ingest"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metadata"
	"github.com/openpowerquality/opq-sub000/internal/metrics"
	"github.com/openpowerquality/opq-sub000/internal/queue"
	"github.com/openpowerquality/opq-sub000/internal/router"
	"github.com/openpowerquality/opq-sub000/internal/services"
	"github.com/openpowerquality/opq-sub000/internal/storage"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging, "opq-ingest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Ingest service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trend store
	store, err := storage.NewStore(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("Failed to open trend store", "error", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
		defer closeCancel()
		_ = store.Close(closeCtx)
	}()
	logger.Info("Trend store ready", "mongo", cfg.UseMongo(), "database", cfg.Mongo.Database)

	// Box registry
	logger.Info("Connecting to box registry", "endpoints", cfg.Etcd.Endpoints)
	registry, err := metadata.NewRegistry(cfg.Etcd)
	if err != nil {
		logger.Fatal("Failed to connect to box registry", "error", err)
	}
	defer func() { _ = registry.Close() }()

	// Connect to Queue (configurable backend)
	logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
	sub, err := queue.NewSubscriber(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	defer func() { _ = sub.Close() }()

	m := metrics.New()

	var boxes ingest.BoxChecker
	if cfg.Ingest.VerifyBoxes {
		boxes = registry
	}
	ingestSvc, err := ingest.NewService(cfg.Ingest, sub, store, boxes, m, logger)
	if err != nil {
		logger.Fatal("Failed to create ingest service", "error", err)
	}
	if err := ingestSvc.Start(); err != nil {
		logger.Fatal("Failed to start ingest", "error", err)
	}

	// Rollup queries on the admin app
	opts, err := services.EngineOptions(cfg.Trends)
	if err != nil {
		logger.Fatal("Invalid trends config", "error", err)
	}
	trends := services.NewTrendService(logger, registry, aggregation.NewEngine(store, store, opts), m)

	h := handlers.New(logger, "opq-ingest", trends, map[string]handlers.ReadinessCheck{
		"store":    store.Ping,
		"registry": func(ctx context.Context) error {
			_, err := registry.BoxExists(ctx, "readiness-check")
			return err
		},
	})
	app := router.New(logger, h, m)

	// Start server in goroutine
	go func() {
		addr := cfg.GetAdminAddress()
		logger.Info("Admin server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start admin server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down ingest...")

	if err := ingestSvc.Stop(); err != nil {
		logger.Warn("Failed to unsubscribe", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Admin server forced to shutdown", "error", err)
	}

	logger.Info("Ingest exited")
}
