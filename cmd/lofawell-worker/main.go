package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"lofawell/internal/amqp"
	"lofawell/internal/config"
	applog "lofawell/internal/log"
	"lofawell/internal/notify"
	"lofawell/internal/sheets"
	gsheet "lofawell/internal/sheets/google"
	"lofawell/internal/store/sqlite"
	"lofawell/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.LevelFromEnv(), applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting lofawell-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.Backend != "sqlite" {
		logger.Error("Worker requires the sqlite backend shared with the server", "backend", cfg.Backend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("Worker requires AMQP_URL")
		os.Exit(1)
	}

	repo, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		logger.Error("Failed to open sqlite store", "error", err, "path", cfg.SQLitePath)
		os.Exit(1)
	}
	defer repo.Close()

	var exporter sheets.ApplicationWriter
	var bulk sheets.BulkExporter
	if cfg.SpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			logger.Error("Failed to initialize sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter, bulk = client, client
		logger.Info("Sheets export enabled", "spreadsheet_id", cfg.SpreadsheetID)
	} else {
		logger.Info("Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var sink notify.Sink
	if cfg.SMTPAddr != "" {
		sink = notify.NewSMTPSink(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPassword)
		logger.Info("SMTP delivery enabled", "addr", cfg.SMTPAddr)
	} else {
		sink = notify.LogSink{}
		logger.Info("SMTP not configured - decisions go to the log")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.New(repo, exporter, bulk, sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeWithReconnect(ctx, w.Handlers())
	})

	if bulk != nil {
		g.Go(func() error {
			return w.RunReconcileLoop(ctx, cfg.ReconcileInterval)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
