package main

import (
	"context"
	"errors"
	"os"
	"time"
	_ "time/tzdata"

	"gastos/internal/amqp"
	"gastos/internal/api"
	"gastos/internal/cli"
	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/sheets"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting gastos-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if len(cfg.UserIDs) == 0 {
		logger.Error("No users to sync: set SYNC_USER_IDS or DEFAULT_USER_ID",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg)

	upstream := api.New(cfg.APIBaseURL, cfg.APITimeout,
		api.WithLocation(cfg.Location()),
		api.WithLogger(logger.WithComponent(log.ComponentUpstream).Logger))

	// Reports are optional; without a spreadsheet only the snapshot is kept.
	var reports sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		reports = client
		logger.Info("Google Sheets reports enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	snapshots := services.NewSnapshotSync(upstream, repo, reports, services.SnapshotSyncConfig{
		Interval:    cfg.SyncInterval,
		Concurrency: cfg.SyncConcurrency,
		UserIDs:     cfg.UserIDs,
	}, cfg.Location(), logger)

	syncWorker := worker.NewSyncWorker(snapshots, repo, cfg.UserIDs, cfg.SyncInterval, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic sync only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := snapshots.Stop(shutdownCtx); err != nil {
			logger.Warn("Snapshot sync stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err)
		}
	})

	// On startup, refresh users whose snapshot is missing or stale
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
		// Don't exit - the periodic sync retries
	}

	if err := snapshots.Start(ctx); err != nil {
		logger.Error("Failed to start snapshot sync", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeExpenseChanged(ctx, syncWorker.HandleExpenseChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
