package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pmpv/internal/cli"
	"pmpv/internal/config"
	"pmpv/internal/log"
	"pmpv/internal/services"
	"pmpv/internal/worker"
)

var (
	errNothingToDo       = errors.New("nothing to do: set AMQP_URL or BACKUP_DIR")
	errBrokerUnavailable = errors.New("AMQP broker unavailable")
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(os.Stdout, cfg.LogLevel, log.ComponentWorker)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}

// run consumes result messages and writes scheduled backups until ctx is
// done. Either part is enabled by its configuration.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if cfg.AMQPURL == "" && cfg.BackupDir == "" {
		return errNothingToDo
	}
	logger.Info("Starting pmpv-worker",
		"amqp_enabled", cfg.AMQPURL != "",
		"backup_dir", cfg.BackupDir)

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		if res.Publisher == nil {
			return errBrokerUnavailable
		}
		exporter := worker.NewExportWorker(res.Service, cfg.ExportDir, res.Targets()...)

		// Results whose messages were lost while the worker was down.
		logger.Info("Performing startup export check...")
		if err := exporter.StartupExportCheck(gctx); err != nil {
			logger.Error("Failed startup export check", "error", err)
		}

		g.Go(func() error {
			err := res.Publisher.ConsumeResults(gctx, exporter.HandleResultMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.BackupDir != "" {
		scheduler := services.NewBackupScheduler(res.Service, services.BackupSchedulerConfig{
			Dir:      cfg.BackupDir,
			Interval: cfg.BackupInterval,
			Keep:     cfg.BackupKeep,
		})
		g.Go(func() error {
			if err := scheduler.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			return scheduler.Stop(stopCtx)
		})
	}

	err = g.Wait()
	logger.Info("Worker shutdown complete")
	return err
}
