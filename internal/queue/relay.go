package queue

import (
	"context"
	"errors"
	"time"

	"courier/internal/types"
)

// RelayMetrics receives per-drain outbox telemetry.
type RelayMetrics interface {
	RecordOutboxPublished(ctx context.Context, n int)
	RecordOutboxLag(ctx context.Context, lag time.Duration)
}

type RelayConfig struct {
	BatchSize int
	Metrics   RelayMetrics
	Clock     types.Clock
	Logger    types.Logger
}

// Relay publishes due outbox rows as send jobs. Rows are claimed with
// SKIP LOCKED inside one transaction per batch, so several relays can run
// side by side. A job may be published twice if the commit fails after
// the publish; SendAsync ignores messages that are already final.
type Relay struct {
	tx        types.TransactionManager
	publisher Publisher
	batchSize int
	metrics   RelayMetrics
	clock     types.Clock
	logger    types.Logger
}

func NewRelay(tx types.TransactionManager, publisher Publisher, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Relay{
		tx:        tx,
		publisher: publisher,
		batchSize: cfg.BatchSize,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
}

// Drain processes one batch and returns how many jobs were published. A
// failed publish leaves its row pending with attempts incremented. An error
// is returned only when nothing could be published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var published, failed int
	var firstErr error
	var lag time.Duration

	err := r.tx.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		published, failed, firstErr, lag = 0, 0, nil, 0

		now := r.clock.Now()
		entries, err := repos.Outbox().ClaimDue(ctx, now, r.batchSize)
		if err != nil {
			return err
		}

		for _, e := range entries {
			lag = max(lag, now.Sub(e.AvailableAt))

			job := types.SendJob{MessageID: e.MessageID, Attempt: e.Attempts + 1}
			if err := r.publisher.Publish(ctx, job, 0); err != nil {
				r.logger.Warn("outbox publish failed", "outbox_id", e.ID, "message_id", e.MessageID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				failed++
				if err := repos.Outbox().MarkFailed(ctx, e.ID); err != nil {
					return err
				}
				continue
			}
			if err := repos.Outbox().MarkPublished(ctx, e.ID, r.clock.Now()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if r.metrics != nil && published+failed > 0 {
		r.metrics.RecordOutboxPublished(ctx, published)
		r.metrics.RecordOutboxLag(ctx, lag)
	}
	if published+failed > 0 {
		r.logger.Info("outbox drained", "published", published, "failed", failed, "lag", lag.String())
	}
	if published == 0 && failed > 0 {
		return 0, firstErr
	}
	return published, nil
}

// Run drains every interval until ctx is cancelled. A full batch is
// followed immediately by another drain.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	return runEvery(ctx, interval, func(ctx context.Context) (bool, error) {
		n, err := r.Drain(ctx)
		if err != nil {
			r.logger.Error("outbox drain failed", "error", err)
			return false, nil
		}
		return n >= r.batchSize, nil
	})
}

// runEvery calls fn on every tick, and again right away while fn reports
// more work. It returns nil when ctx is cancelled.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for {
			more, err := fn(ctx)
			if err != nil {
				return err
			}
			if !more || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
