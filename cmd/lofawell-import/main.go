// Command lofawell-import loads a first-generation datastore dump into
// the sqlite backend. The dump is a JSON array of raw application
// documents, localized field names included; records are normalized at
// the boundary and upserted by id, so re-running an import is safe.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"lofawell/internal/config"
	"lofawell/internal/core"
	applog "lofawell/internal/log"
	"lofawell/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.LevelFromEnv(), applog.ComponentImport)
	applog.SetDefault(logger)

	file := flag.String("file", "", "path to a JSON array of legacy application documents")
	flag.Parse()
	if *file == "" {
		logger.Error("Missing -file argument")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("Failed to read export file", "error", err, "file", *file)
		os.Exit(1)
	}

	apps, err := core.DecodeLegacyExport(raw)
	if err != nil {
		logger.Error("Failed to decode export file", "error", err, "file", *file)
		os.Exit(1)
	}

	repo, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		logger.Error("Failed to open sqlite store", "error", err, "path", cfg.SQLitePath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()
	for _, app := range apps {
		if err := repo.Put(ctx, app); err != nil {
			logger.Error("Failed to import application", "app_id", app.ID, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("Import complete", "count", len(apps), "path", cfg.SQLitePath)
}
