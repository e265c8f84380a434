package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"courier/internal/types"
)

type SweeperConfig struct {
	// StaleAfter is how long a non-final message may go untouched before
	// it is re-enqueued.
	StaleAfter time.Duration
	// MaxEnqueues caps the outbox rows one message can accumulate.
	MaxEnqueues int
	BatchSize   int
	Clock       types.Clock
	Logger      types.Logger
}

// Sweeper recovers messages that are still preparing or waiting to retry
// but have no job in flight, e.g. after a worker crashed between commit and
// publish or a delayed SQS job was lost. Each one gets a fresh outbox row.
type Sweeper struct {
	repos types.RepositoryRegistry
	tx    types.TransactionManager
	cfg   SweeperConfig
	newID func() string
}

func NewSweeper(repos types.RepositoryRegistry, tx types.TransactionManager, cfg SweeperConfig) *Sweeper {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.MaxEnqueues <= 0 {
		cfg.MaxEnqueues = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Sweeper{repos: repos, tx: tx, cfg: cfg, newID: uuid.NewString}
}

// Sweep re-enqueues one batch of stale messages and returns how many.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.cfg.Clock.Now()
	ids, err := s.repos.Messages().ListStale(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.MaxEnqueues, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		for _, id := range ids {
			if err := repos.Outbox().Enqueue(ctx, &types.OutboxEntry{
				ID:          s.newID(),
				MessageID:   id,
				AvailableAt: now,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cfg.Logger.Warn("re-enqueued stale messages", "count", len(ids), "stale_after", s.cfg.StaleAfter.String())
	return len(ids), nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	return runEvery(ctx, interval, func(ctx context.Context) (bool, error) {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.cfg.Logger.Error("stale sweep failed", "error", err)
			return false, nil
		}
		return n >= s.cfg.BatchSize, nil
	})
}
