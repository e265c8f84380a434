// Package main runs the outbox relay and the stale-message sweeper as one
// long-lived process.
//
// The relay drains due outbox rows into the send queue every
// RELAY_INTERVAL. The sweeper looks for non-final messages untouched for
// STALE_AFTER every SWEEP_INTERVAL and gives them a fresh outbox row.
// Several instances may run side by side; rows are claimed with SKIP
// LOCKED. SIGINT and SIGTERM stop both loops.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"courier/internal/app"
	"courier/internal/queue"
	"courier/internal/types"
)

// loop is a periodic job. queue.Relay and queue.Sweeper implement it.
type loop interface {
	Run(ctx context.Context, interval time.Duration) error
}

type schedule struct {
	name     string
	loop     loop
	interval time.Duration
}

// runAll runs every loop until ctx is cancelled. The first loop to fail
// stops the others and its error is returned.
func runAll(ctx context.Context, logger types.Logger, loops ...schedule) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range loops {
		g.Go(func() error {
			logger.Info("loop started", "loop", s.name, "interval", s.interval.String())
			if err := s.loop.Run(gctx, s.interval); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			logger.Info("loop stopped", "loop", s.name)
			return nil
		})
	}
	return g.Wait()
}

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
	logger := app.NewSlogAdapter(app.NewLogger(cfg.LogLevel).With("service", cfg.Service, "component", "outbox-relay"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	database, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := queue.NewJobPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.SendQueueURL, logger.With("component", "publisher"))
	relay := queue.NewRelay(database.Tx, publisher, queue.RelayConfig{
		BatchSize: cfg.Delivery.RelayBatchSize,
		Metrics:   app.NewMetrics(cfg, awsCfg, logger),
		Logger:    logger.With("loop", "relay"),
	})
	sweeper := queue.NewSweeper(database.Store, database.Tx, queue.SweeperConfig{
		StaleAfter:  cfg.Delivery.StaleAfter,
		MaxEnqueues: cfg.Delivery.SweepMaxEnqueues,
		Logger:      logger.With("loop", "sweeper"),
	})

	logger.Info("outbox relay starting", "version", cfg.Build.Version, "environment", cfg.Environment)
	err = runAll(ctx, logger,
		schedule{name: "relay", loop: relay, interval: cfg.Delivery.RelayInterval},
		schedule{name: "sweeper", loop: sweeper, interval: cfg.Delivery.SweepInterval},
	)
	if err != nil {
		return err
	}
	logger.Info("outbox relay stopped cleanly")
	return nil
}
