// Command inkhaven runs the Inkhaven campaign coordination server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkhaven/inkhaven/internal/platform/config"
	"github.com/inkhaven/inkhaven/internal/platform/logging"
	"github.com/inkhaven/inkhaven/internal/platform/otel"
	"github.com/inkhaven/inkhaven/internal/services/story/api"
	"github.com/inkhaven/inkhaven/internal/services/story/app"
	"github.com/inkhaven/inkhaven/internal/services/story/notify"
	"github.com/inkhaven/inkhaven/internal/services/story/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("inkhaven: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "inkhaven", cfg.OTELEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open database")
	}
	defer store.Close()

	hub := notify.NewHub(logger)
	notifier := app.Notifier(hub)
	if cfg.RedisURL != "" {
		publisher, err := notify.NewRedisPublisher(cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer publisher.Close()
		notifier = app.MultiNotifier{hub, publisher}
	}

	svc := app.New(store, app.Options{
		Notifier:    notifier,
		Logger:      logger,
		WriteWindow: cfg.WriteWindow,
		LockTTL:     cfg.ComposeLockTTL,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(svc, hub, cfg.JWTSecret, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("serve")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}
}
