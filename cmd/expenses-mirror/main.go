package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/client"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	gsheet "expensetracker/internal/sheets/google"
	"expensetracker/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", applog.FieldOperation, applog.OpValidate, applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	sheet, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	lister, cleanup := recordSource(ctx, logger, cfg)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Failed to release record source", applog.FieldError, err)
		}
	}()

	events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer events.Close()

	mirror := worker.NewMirrorWorker(lister, sheet, worker.MirrorConfig{
		Debounce:       cfg.MirrorDebounce,
		ResyncInterval: cfg.MirrorResyncInterval,
	})

	g, gctx := errgroup.WithContext(ctx)

	if err := mirror.Start(gctx); err != nil {
		logger.Error("Failed to start mirror worker", applog.FieldError, err)
		os.Exit(1)
	}

	g.Go(func() error {
		err := events.ConsumeRecordEvents(gctx, mirror.HandleRecordEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return mirror.Stop(stopCtx)
	})

	logger.Info("Sheets mirror running",
		applog.FieldOperation, applog.OpStartup,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil {
		logger.Error("Mirror stopped with error", applog.FieldError, err)
		return
	}
	logger.Info("Mirror stopped gracefully", applog.FieldCount, mirror.Syncs())
}

// recordSource reads the store directly when it is shared, and goes through
// the API when records only live in the server's memory.
func recordSource(ctx context.Context, logger *applog.Logger, cfg *config.Config) (worker.RecordLister, func() error) {
	if cfg.DataBackend == config.BackendMemory {
		logger.Info("Reading records through the API", "api_url", cfg.APIURL)
		api := client.New(cfg.APIURL, 30*time.Second)
		return worker.ListFunc(api.GetExpenses), func() error { return nil }
	}

	// The mirror only reads, so it never publishes events of its own.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res := cli.InitBackend(ctx, logger, &storeCfg)
	return res.Service, res.Cleanup
}
