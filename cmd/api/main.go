// Package main is the entry point for the Courier API server.
//
// It loads configuration, connects the delivery pipeline (Postgres, the
// catalog cache, channel adapters, S3 attachments) and serves:
//
//	POST /v1/notifications
//	GET  /v1/notifications/{id}/messages
//	GET  /v1/messages/{id}
//	GET  /health
//
// POSTs carrying an Idempotency-Key are deduplicated through redis when it
// is configured. Time-sensitive messages are sent inline; everything else
// is left in the outbox for cmd/outbox-relay. Graceful shutdown is handled
// via SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/api"
	"courier/internal/api/handlers"
	"courier/internal/app"
	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel).With("service", cfg.Service)
	logger.Info("courier API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	pipeline, err := app.NewPipeline(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer pipeline.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, pipeline.Pool); err != nil {
			return err
		}
		logger.Info("database schema applied")
	}

	deps := serverDeps{
		Sender:        pipeline.Orchestrator,
		Notifications: pipeline.Store.Notifications(),
		Messages:      pipeline.Store.Messages(),
		Persons:       pipeline.Store.Persons(),
		Probes:        []api.HealthProbe{api.NewPingProbe("database", pipeline.Pool)},
	}
	if pipeline.Redis != nil {
		deps.Probes = append(deps.Probes, api.NewPingProbe("redis", cache.NewRedisStore(pipeline.Redis)))
		deps.Idempotency = cache.NewIdempotencyStore(pipeline.Redis, cfg.Redis.IdempotencyTTL)
	}

	srv, err := newServer(cfg, logger, deps)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return serve(ctx, srv, cfg.Server, logger)
}

// serverDeps are the collaborators behind the HTTP handlers.
type serverDeps struct {
	Sender        handlers.NotificationSender
	Notifications handlers.NotificationReader
	Messages      handlers.MessageReader
	Persons       handlers.PersonReader
	Probes        []api.HealthProbe
	// Idempotency is nil when redis is not configured.
	Idempotency   api.IdempotencyStore
}

func newServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*api.Server, error) {
	srv, err := api.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.HealthProbes = deps.Probes
	srv.Idempotency = deps.Idempotency

	nh := handlers.NewNotificationHandler(deps.Sender, deps.Notifications, deps.Messages, deps.Persons, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, nh.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// serve runs the HTTP server until ctx is cancelled or the listener fails,
// then drains in-flight requests within ShutdownTimeout.
func serve(ctx context.Context, srv *api.Server, cfg config.ServerConfig, logger *slog.Logger) error {
	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
