package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"courier/internal/types"
)

var _ types.CatalogReader = (*CatalogRepository)(nil)

// CatalogRepository reads reference data: notification types, channels,
// templates and channel routes. Production reads go through
// cache.CatalogCache.
type CatalogRepository struct {
	db DBTX
}

func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) NotificationType(ctx context.Context, id string) (*types.NotificationType, error) {
	var t types.NotificationType
	err := r.db.QueryRow(ctx,
		`SELECT id, name, disabled, can_opt_out, allow_attachments, is_time_sensitive
		 FROM notification_types
		 WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Disabled, &t.CanOptOut, &t.AllowAttachments, &t.IsTimeSensitive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotificationType, "notification type not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification type", err)
	}
	return &t, nil
}

func (r *CatalogRepository) Channel(ctx context.Context, id string) (*types.ChannelConfig, error) {
	var ch types.ChannelConfig
	err := r.db.QueryRow(ctx,
		`SELECT id, name, supported_format, supports_attachment, adapter_id, disabled
		 FROM channels
		 WHERE id = $1`,
		id,
	).Scan(&ch.ID, &ch.Name, &ch.SupportedFormat, &ch.SupportsAttachment, &ch.AdapterID, &ch.Disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundChannel, "channel not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get channel", err)
	}
	return &ch, nil
}

// Template returns the template for (typeID, format). A missing row is the
// delivery error template_not_found, not a 404.
func (r *CatalogRepository) Template(ctx context.Context, typeID string, format types.ContentFormat) (*types.Template, error) {
	var t types.Template
	err := r.db.QueryRow(ctx,
		`SELECT id, type_id, format, title_template, body_template
		 FROM templates
		 WHERE type_id = $1 AND format = $2`,
		typeID, string(format),
	).Scan(&t.ID, &t.TypeID, &t.Format, &t.TitleTemplate, &t.BodyTemplate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeTemplateNotFound,
				"template not found", nil,
				map[string]any{"type_id": typeID, "format": string(format)})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get template", err)
	}
	return &t, nil
}

// RoutesFor returns channel ids configured for the type at the given
// priority, in route order. Routes with a NULL priority apply to all.
func (r *CatalogRepository) RoutesFor(ctx context.Context, typeID string, priority types.Priority) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT channel_id
		 FROM channel_routes
		 WHERE type_id = $1
		   AND (priority IS NULL OR priority = $2)
		 ORDER BY position, channel_id`,
		typeID, int16(priority),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list channel routes", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan route row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating route rows", err)
	}
	return ids, nil
}
