package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"courier/internal/types"
)

// NotificationRepository provides data access for the notifications table.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification. The caller sets the ID. A zero CreatedAt
// lets the database default apply.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification) error {
	var entityID, entityClass *string
	if n.TriggeringEntity != nil {
		entityID = nilIfEmpty(n.TriggeringEntity.ID)
		entityClass = nilIfEmpty(n.TriggeringEntity.ClassName)
	}
	var payload []byte
	if len(n.Payload) > 0 {
		payload = n.Payload
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, name, type_id, from_person_id, to_person_id, payload, priority,
		  triggering_entity_id, triggering_entity_class, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		n.ID,
		n.Name,
		n.TypeID,
		nilIfEmpty(n.FromPersonID),
		nilIfEmpty(n.ToPersonID),
		payload,
		int16(n.Priority),
		entityID,
		entityClass,
		nilIfZeroTime(n.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// GetByID returns the notification or a not_found_notification error.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*types.Notification, error) {
	var (
		n                     types.Notification
		fromID, toID          *string
		entityID, entityClass *string
		payload               []byte
		priority              int16
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, type_id, from_person_id, to_person_id, payload, priority,
		        triggering_entity_id, triggering_entity_class, created_at
		 FROM notifications
		 WHERE id = $1`,
		id,
	).Scan(
		&n.ID,
		&n.Name,
		&n.TypeID,
		&fromID,
		&toID,
		&payload,
		&priority,
		&entityID,
		&entityClass,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification", err)
	}

	n.FromPersonID = derefString(fromID)
	n.ToPersonID = derefString(toID)
	n.Payload = payload
	n.Priority = types.Priority(priority)
	if entityID != nil || entityClass != nil {
		n.TriggeringEntity = &types.EntityRef{ID: derefString(entityID), ClassName: derefString(entityClass)}
	}
	return &n, nil
}
