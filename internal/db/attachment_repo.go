package db

import (
	"context"

	"courier/internal/types"
)

// AttachmentRepository provides data access for the message_attachments
// table.
type AttachmentRepository struct {
	db DBTX
}

func NewAttachmentRepository(db DBTX) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *types.MessageAttachment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO message_attachments (id, message_id, file_id, file_name)
		 VALUES ($1, $2, $3, $4)`,
		a.ID, a.MessageID, a.FileID, a.FileName,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create message attachment", err)
	}
	return nil
}

// ListByMessage returns the attachments of a message in insertion order.
func (r *AttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]types.MessageAttachment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, message_id, file_id, file_name
		 FROM message_attachments
		 WHERE message_id = $1
		 ORDER BY id`,
		messageID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list message attachments", err)
	}
	defer rows.Close()

	var out []types.MessageAttachment
	for rows.Next() {
		var a types.MessageAttachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileID, &a.FileName); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan attachment row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating attachment rows", err)
	}
	return out, nil
}
