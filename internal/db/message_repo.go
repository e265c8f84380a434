package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"courier/internal/types"
)

// MessageRepository provides data access for the messages table. Delivery
// state (status, retry_count, error_message, sent_at) is only ever written
// through UpdateDelivery.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository backed by the given
// database connection (pool or transaction).
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// msgColumns defines the standard set of columns selected for message
// queries. The order must match scanMessage.
const msgColumns = `id, notification_id, channel_id, subject, body,
	recipient_text, sender_text, retry_count, error_message, sent_at,
	status, direction, read_status, created_at, updated_at`

func scanMessage(row pgx.Row) (*types.Message, error) {
	var m types.Message
	err := row.Scan(
		&m.ID,
		&m.NotificationID,
		&m.ChannelID,
		&m.Subject,
		&m.Body,
		&m.RecipientText,
		&m.SenderText,
		&m.RetryCount,
		&m.ErrorMessage,
		&m.SentAt,
		&m.Status,
		&m.Direction,
		&m.ReadStatus,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a message. Zero timestamps let the database default apply.
func (r *MessageRepository) Create(ctx context.Context, m *types.Message) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages
		 (id, notification_id, channel_id, subject, body, recipient_text, sender_text,
		  retry_count, error_message, sent_at, status, direction, read_status,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		         COALESCE($14, NOW()), COALESCE($15, NOW()))`,
		m.ID,
		m.NotificationID,
		m.ChannelID,
		m.Subject,
		m.Body,
		m.RecipientText,
		m.SenderText,
		m.RetryCount,
		m.ErrorMessage,
		m.SentAt,
		string(m.Status),
		string(m.Direction),
		string(m.ReadStatus),
		nilIfZeroTime(m.CreatedAt),
		nilIfZeroTime(m.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create message", err)
	}
	return nil
}

// GetByID returns the message without locking it.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*types.Message, error) {
	return r.get(ctx, `SELECT `+msgColumns+` FROM messages WHERE id = $1`, id)
}

// GetForUpdate returns the message and holds its row lock until the
// enclosing transaction ends. Concurrent attempts on the same message
// serialize here.
func (r *MessageRepository) GetForUpdate(ctx context.Context, id string) (*types.Message, error) {
	return r.get(ctx, `SELECT `+msgColumns+` FROM messages WHERE id = $1 FOR UPDATE`, id)
}

func (r *MessageRepository) get(ctx context.Context, query, id string) (*types.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get message", err)
	}
	return m, nil
}

// ListByNotification returns every message of a notification in creation
// order.
func (r *MessageRepository) ListByNotification(ctx context.Context, notificationID string) ([]*types.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+msgColumns+`
		 FROM messages
		 WHERE notification_id = $1
		 ORDER BY created_at, id`,
		notificationID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list messages", err)
	}
	defer rows.Close()

	var results []*types.Message
	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message row", scanErr)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating message rows", err)
	}
	return results, nil
}

// UpdateDelivery persists the delivery state of m along with the
// recomputed recipient text, and bumps updated_at.
func (r *MessageRepository) UpdateDelivery(ctx context.Context, m *types.Message) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET
			status = $1,
			retry_count = $2,
			error_message = $3,
			sent_at = $4,
			recipient_text = $5,
			updated_at = COALESCE($6, NOW())
		 WHERE id = $7`,
		string(m.Status),
		m.RetryCount,
		m.ErrorMessage,
		m.SentAt,
		m.RecipientText,
		nilIfZeroTime(m.UpdatedAt),
		m.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update message delivery", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
	}
	return nil
}

// ListStale returns ids of non-terminal messages untouched since olderThan
// that have no pending outbox row and no outbox row written since
// olderThan. Messages already re-enqueued maxEnqueues times are left alone.
func (r *MessageRepository) ListStale(ctx context.Context, olderThan time.Time, maxEnqueues, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT m.id
		 FROM messages m
		 WHERE m.status IN ('preparing', 'wait_to_retry')
		   AND m.updated_at < $1
		   AND NOT EXISTS (
		       SELECT 1 FROM outbox o
		       WHERE o.message_id = m.id
		         AND (o.published_at IS NULL OR o.created_at >= $1))
		   AND (SELECT COUNT(*) FROM outbox o WHERE o.message_id = m.id) < $2
		 ORDER BY m.updated_at
		 LIMIT $3`,
		olderThan,
		maxEnqueues,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list stale messages", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan stale message row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating stale message rows", err)
	}
	return ids, nil
}
