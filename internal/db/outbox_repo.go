package db

import (
	"context"
	"time"

	"courier/internal/types"
)

// OutboxRepository provides data access for the outbox table. Rows are
// written in the same transaction as the message state they refer to and
// drained by the relay.
type OutboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts an unpublished outbox row.
func (r *OutboxRepository) Enqueue(ctx context.Context, e *types.OutboxEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO outbox (id, message_id, available_at, attempts, created_at)
		 VALUES ($1, $2, COALESCE($3, NOW()), $4, COALESCE($5, NOW()))`,
		e.ID,
		e.MessageID,
		nilIfZeroTime(e.AvailableAt),
		e.Attempts,
		nilIfZeroTime(e.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to enqueue outbox entry", err)
	}
	return nil
}

// ClaimDue locks up to limit unpublished rows whose available_at has
// passed. SKIP LOCKED lets several relays drain the table concurrently; the
// locks hold until the caller's transaction ends, so ClaimDue must run
// inside TxManager.RunInTx.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*types.OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, message_id, available_at, published_at, attempts, created_at
		 FROM outbox
		 WHERE published_at IS NULL
		   AND available_at <= $1
		 ORDER BY available_at, id
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to claim outbox entries", err)
	}
	defer rows.Close()

	var out []*types.OutboxEntry
	for rows.Next() {
		var e types.OutboxEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.AvailableAt, &e.PublishedAt, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan outbox row", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating outbox rows", err)
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE outbox SET published_at = $1, attempts = attempts + 1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark outbox entry published", err)
	}
	return nil
}

// MarkFailed records a failed publish. The row stays unpublished and is
// picked up again on the next drain.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record outbox publish failure", err)
	}
	return nil
}
