package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ecotrack/internal/app"
	"ecotrack/internal/config"
	"ecotrack/internal/logger"
)

func main() {
	logger.Init(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("identity service failed to start", map[string]any{"error": err.Error()})
	}

	if err := service.Run(ctx); err != nil {
		logger.Fatal("identity service stopped with error", map[string]any{"error": err.Error()})
	}
	logger.Info("identity service stopped", nil)
}
