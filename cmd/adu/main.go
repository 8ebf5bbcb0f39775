package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/latvis980/adu/internal/app"
	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("cannot assemble application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
