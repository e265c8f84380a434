package types

import (
	"context"
	"time"
)

// Logger defines the structured logging interface used throughout the
// pipeline. Binaries back it with log/slog.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// NopLogger discards everything. Useful as a default when no logger is wired.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (n NopLogger) With(...any) Logger { return n }

// NotificationRepository persists Notification rows.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
}

// MessageRepository persists Message rows. GetForUpdate takes a row lock that
// is held until the enclosing transaction ends.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	GetForUpdate(ctx context.Context, id string) (*Message, error)
	ListByNotification(ctx context.Context, notificationID string) ([]*Message, error)
	UpdateDelivery(ctx context.Context, m *Message) error
	ListStale(ctx context.Context, olderThan time.Time, maxEnqueues, limit int) ([]string, error)
}

// AttachmentRepository persists MessageAttachment rows.
type AttachmentRepository interface {
	Create(ctx context.Context, a *MessageAttachment) error
	ListByMessage(ctx context.Context, messageID string) ([]MessageAttachment, error)
}

// OutboxRepository persists pending send requests.
type OutboxRepository interface {
	Enqueue(ctx context.Context, e *OutboxEntry) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

// PersonRepository reads Person rows.
type PersonRepository interface {
	GetByID(ctx context.Context, id string) (*Person, error)
}

// StoredFileRepository reads stored file metadata.
type StoredFileRepository interface {
	GetByID(ctx context.Context, id string) (*StoredFile, error)
}

// PreferenceRepository answers opt-out questions for person receivers.
type PreferenceRepository interface {
	IsOptedOut(ctx context.Context, personID, typeID string) (bool, error)
}

// CatalogReader serves the read-only reference data: notification types,
// channels, templates and channel routes. It may be cached.
type CatalogReader interface {
	NotificationType(ctx context.Context, id string) (*NotificationType, error)
	Channel(ctx context.Context, id string) (*ChannelConfig, error)
	Template(ctx context.Context, typeID string, format ContentFormat) (*Template, error)
	RoutesFor(ctx context.Context, typeID string, priority Priority) ([]string, error)
}

// RepositoryRegistry groups the mutable-state repositories bound to one
// database handle (pool or transaction).
type RepositoryRegistry interface {
	Notifications() NotificationRepository
	Messages() MessageRepository
	Attachments() AttachmentRepository
	Outbox() OutboxRepository
	Persons() PersonRepository
	StoredFiles() StoredFileRepository
	Preferences() PreferenceRepository
}

// TransactionManager runs fn inside a single database transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryRegistry) error) error
}
