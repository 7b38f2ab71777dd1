package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lofawell/internal/amqp"
	"lofawell/internal/blob"
	"lofawell/internal/config"
	"lofawell/internal/engine"
	apphttp "lofawell/internal/http"
	applog "lofawell/internal/log"
	"lofawell/internal/policy"
	gsheet "lofawell/internal/sheets/google"
	"lofawell/internal/store"
	"lofawell/internal/store/memory"
	"lofawell/internal/store/sqlite"
)

func main() {
	// .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New(applog.LevelFromEnv(), applog.ComponentApp)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		repo     store.ApplicationRepository
		users    store.UserDirectory
		settings store.SettingsStore
		closer   func() error
	)
	switch cfg.Backend {
	case "sqlite":
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			logger.Error("Failed to open sqlite store", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		repo, users, settings, closer = db, db, db, db.Close
		logger.Info("Initialized sqlite backend", "path", cfg.SQLitePath)
	default:
		mem := memory.New()
		repo, users, settings, closer = mem, mem, mem, func() error { return nil }
		logger.Info("Initialized memory backend")
	}
	defer closer()

	table, err := loadPolicy(cfg, settings)
	if err != nil {
		logger.Error("Failed to load policy table", "error", err)
		os.Exit(1)
	}
	logger.Info("Policy table loaded", "version", table.Version)

	// Persist the active revision so the worker and audits read the
	// same table this process decided with.
	if cfg.PolicyFile != "" {
		if raw, err := os.ReadFile(cfg.PolicyFile); err == nil {
			if err := settings.SavePolicyRevision(context.Background(), table.Version, raw); err != nil {
				logger.Warn("Failed to save policy revision", "error", err)
			}
		}
	}

	var publisher engine.SyncPublisher
	var notifier engine.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher, notifier = client, client
		logger.Info("AMQP messaging enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - decisions are logged, not delivered")
	}

	deps := apphttp.Deps{
		Applications: engine.NewApplicationService(repo, engine.SystemClock{}, publisher),
		Review:       engine.NewReviewService(repo, users, notifier),
		Usage:        engine.NewUsageService(repo, table, engine.SystemClock{}),
		Users:        users,
		Settings:     settings,
		Repo:         repo,
	}

	switch cfg.BlobBackend {
	case "fs":
		fsStore, err := blob.NewFSStore(cfg.AttachmentDir)
		if err != nil {
			logger.Error("Failed to initialize attachment store", "error", err)
			os.Exit(1)
		}
		deps.Blobs = fsStore
		deps.AttachmentDir = fsStore.Dir()
	case "gcs":
		gcsStore, err := blob.NewGCSStore(context.Background(), cfg.StorageBucket, cfg.StoragePrefix)
		if err != nil {
			logger.Error("Failed to initialize cloud attachment store", "error", err)
			os.Exit(1)
		}
		deps.Blobs = gcsStore
	}

	if cfg.SpreadsheetID != "" {
		exporter, err := gsheet.New(context.Background(), cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			logger.Error("Failed to initialize sheets exporter", "error", err)
			os.Exit(1)
		}
		deps.Exporter = exporter
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting lofawell server", "port", cfg.Port, "backend", cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// loadPolicy resolves the active limit table: an explicit POLICY_FILE
// wins, then the last revision persisted in the settings store, then
// the embedded default.
func loadPolicy(cfg *config.Config, settings store.SettingsStore) (*policy.Table, error) {
	if cfg.PolicyFile != "" {
		return policy.LoadFile(cfg.PolicyFile)
	}
	if _, doc, err := settings.LatestPolicyRevision(context.Background()); err == nil {
		table, err := policy.Parse(doc)
		if err == nil {
			return table, nil
		}
		slog.Warn("Stored policy revision is invalid, using embedded default", "error", err)
	}
	return policy.Default()
}
