package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fortuna/internal/amqp"
	"fortuna/internal/cli"
	"fortuna/internal/core"
	"fortuna/internal/log"
	gsheet "fortuna/internal/sheets/google"
	"fortuna/internal/worker"
)

// resyncInterval is how often the current year is checked against the journal.
const resyncInterval = 6 * time.Hour

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentSheets)

	logger.Info("Starting sheets-sync-worker")

	if err := cfg.ValidateSheets(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// A shared store enables the resync backup; the memory backend has
	// nothing to share with other processes.
	var syncer *worker.SyncWorker
	var cleanup func() error
	if cfg.DataBackend == "memory" {
		logger.Info("Memory backend - resync disabled, mirroring events only")
		syncer = worker.NewSyncWorker(sheetsClient, sheetsClient, nil)
	} else {
		cfg.AMQPURL = "" // the worker consumes; it never publishes
		result, svc := cli.MustOpenBackend(context.Background(), logger, cfg)
		cleanup = result.Cleanup
		syncer = worker.NewSyncWorker(sheetsClient, sheetsClient, svc.Journal)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, syncer.HandleEvent)
	})
	if cleanup != nil {
		g.Go(func() error {
			resync := func() {
				if _, err := syncer.SyncYear(gctx, core.Today().Year()); err != nil {
					logger.Error("Sheet resync failed", log.FieldError, err)
				}
			}
			logger.Info("Performing startup sync check...")
			resync()

			ticker := time.NewTicker(resyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					resync()
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}
	if cleanup != nil {
		if err := cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}

	select {
	case <-ctx.Done():
		<-done
	default:
	}
	logger.Info("Sheets-sync-worker shutdown complete")
}
