// Package app assembles the identity service and runs its HTTP server.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"ecotrack/internal/config"
	"ecotrack/internal/logger"
)

type App struct {
	server          *http.Server
	cleanup         func() error
	shutdownTimeout time.Duration
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	router, cleanup, err := setupHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Requests inherit a context that ends at shutdown, so event streams
	// close instead of holding Shutdown open.
	base, stopStreams := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	server.RegisterOnShutdown(stopStreams)

	return &App{
		server:          server,
		cleanup:         cleanup,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Run serves until ctx ends, then drains in-flight requests and closes
// the backing stores.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.ListenAndServe()
	}()
	logger.Info("listening", map[string]any{"addr": a.server.Addr})

	select {
	case err := <-serveErr:
		return errors.Join(err, a.cleanup())
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received", nil)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if serr := <-serveErr; !errors.Is(serr, http.ErrServerClosed) {
		err = errors.Join(err, serr)
	}
	return errors.Join(err, a.cleanup())
}
