package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"totalx/internal/amqp"
	"totalx/internal/backend"
	"totalx/internal/cli"
	"totalx/internal/ledger"
	"totalx/internal/log"
	"totalx/internal/sheets"
	gsheet "totalx/internal/sheets/google"
	"totalx/internal/sheets/memory"
	"totalx/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.ErrorContext(context.Background(), "Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.InfoContext(context.Background(), "Starting totalx-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker only reads stores; it never publishes.
	backendCfg.AMQPURL = ""
	backendCfg.KafkaBrokers = nil
	res, err := backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	var writer sheets.DocumentWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.InfoContext(ctx, "Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = memory.New()
		logger.WarnContext(ctx, "Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// No summary cache: the server mutates the stores behind our back.
	syncWorker := worker.NewSyncWorker(ledger.New(ledger.NewStores(res.Repository), ledger.WithLocation(cfg.Location())), writer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, syncWorker.HandleEvent)
	})
	g.Go(func() error {
		return syncWorker.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(context.Background(), "Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	synced, failed := syncWorker.Stats()
	logger.InfoContext(context.Background(), "Worker stopped gracefully", "synced", synced, "failed", failed)
}
