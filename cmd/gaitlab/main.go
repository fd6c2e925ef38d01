package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gaitlab/adapters/export"
	"gaitlab/adapters/postgres"
	"gaitlab/domain/metrics"
	"gaitlab/internal"
	"gaitlab/internal/config"
	"gaitlab/internal/pipeline"
	"gaitlab/ui"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := internal.DefaultLogger
	if cfg.Debug {
		logger = internal.NewLogger(internal.LogLevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := metrics.NewTable()
	runner := pipeline.NewRunner(cfg, logger)
	result, err := runner.Run(ctx, table)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	if cfg.Paths.ExportFile != "" {
		writer := export.NewWorkbookWriter(cfg.Paths.ExportFile)
		if err := writer.Write(table, result.Models); err != nil {
			logger.Error("Workbook export failed: %v", err)
		} else {
			logger.Info("Workbook written to %s", cfg.Paths.ExportFile)
		}
	}

	if cfg.Database.URL != "" {
		archive, err := postgres.NewArchiveRepository(cfg.Database.URL)
		if err != nil {
			logger.Error("Archive unavailable: %v", err)
		} else {
			defer archive.Close()
			if err := archive.StoreMetrics(ctx, result.BatchID, table.Records()); err != nil {
				logger.Error("Archiving metrics failed: %v", err)
			}
			if err := archive.StoreModels(ctx, result.BatchID, result.Models); err != nil {
				logger.Error("Archiving models failed: %v", err)
			}
		}
	}

	if !cfg.Server.Enabled {
		return
	}

	app := ui.NewApp(table, logger)
	app.SetResult(result)
	if err := app.Serve(ctx, ui.Config{Port: cfg.Server.Port}); err != nil {
		log.Fatalf("Results API failed: %v", err)
	}
}
