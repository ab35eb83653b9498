package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearth/internal/backend"
	"hearth/internal/cli"
	apphttp "hearth/internal/http"
	"hearth/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting hearth")

	cfg := cli.LoadAndValidateConfig(logger)
	clk := cli.SetupClock(logger, cfg)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := backend.NewFactory(clk, logger)
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	coord := services.NewCoordinator(clk, res.Backend)
	views := services.NewViewService(clk, coord, res.Backend)

	// Push invalidations trigger a full refetch of the active window.
	if res.Feed != nil {
		go func() {
			if err := coord.WatchChanges(ctx, res.Feed); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change feed stopped", "error", err)
			}
		}()
	}

	srv := apphttp.NewServer(":"+cfg.Port, clk, views, coord, res.Backend)

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", clk.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	cancel()

	if res.Cleanup != nil {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}
