package main

import (
	"context"
	"os"
	"time"

	"hearth/internal/backend"
	"hearth/internal/cli"
	"hearth/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting hearth-reminder")

	cfg := cli.LoadAndValidateConfig(logger)
	clk := cli.SetupClock(logger, cfg)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	factory := backend.NewFactory(clk, logger)
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	reminderWorker := worker.NewReminderWorker(clk, res.Backend, worker.LogDispatcher{}, cfg.ReminderLookahead)

	runCtx, cancel := context.WithCancel(ctx)
	stop, err := reminderWorker.Start(runCtx, cfg.ReminderSchedule)
	if err != nil {
		logger.Error("Failed to start reminder worker", "error", err)
		cancel()
		os.Exit(1)
	}

	logger.Info("Reminder worker running",
		"schedule", cfg.ReminderSchedule,
		"lookahead", cfg.ReminderLookahead.String(),
		"backend", cfg.DataBackend)

	shutdownCtx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		stop()
		cancel()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}
	})

	cli.WaitForShutdown(shutdownCtx, done)
}
