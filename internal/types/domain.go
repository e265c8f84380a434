package types

import (
	"encoding/json"
	"time"
)

// NotificationType is reference data describing a class of notification.
// It is immutable for the duration of a send.
type NotificationType struct {
	ID               string `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	Disabled         bool   `json:"disabled" db:"disabled"`
	CanOptOut        bool   `json:"can_opt_out" db:"can_opt_out"`
	AllowAttachments bool   `json:"allow_attachments" db:"allow_attachments"`
	IsTimeSensitive  bool   `json:"is_time_sensitive" db:"is_time_sensitive"`
}

// ChannelConfig identifies a delivery channel and the transport adapter that
// carries it.
type ChannelConfig struct {
	ID                 string        `json:"id" db:"id"`
	Name               string        `json:"name" db:"name"`
	SupportedFormat    ContentFormat `json:"supported_format" db:"supported_format"`
	SupportsAttachment bool          `json:"supports_attachment" db:"supports_attachment"`
	AdapterID          AdapterID     `json:"adapter_id" db:"adapter_id"`
	Disabled           bool          `json:"disabled" db:"disabled"`
}

// Template holds the title and body templates for one
// (NotificationType, ContentFormat) pair.
type Template struct {
	ID            string        `json:"id" db:"id"`
	TypeID        string        `json:"type_id" db:"type_id"`
	Format        ContentFormat `json:"format" db:"format"`
	TitleTemplate string        `json:"title_template" db:"title_template"`
	BodyTemplate  string        `json:"body_template" db:"body_template"`
}

// Person is a known identity that can send or receive notifications. Its
// address is derived per channel (email for email channels, mobile number
// for SMS).
type Person struct {
	ID           string `json:"id" db:"id"`
	FullName     string `json:"full_name" db:"full_name"`
	Email        string `json:"email" db:"email"`
	MobileNumber string `json:"mobile_number" db:"mobile_number"`
	WebhookURL   string `json:"webhook_url" db:"webhook_url"`
}

// EntityRef points at the business entity that triggered a notification.
type EntityRef struct {
	ID        string `json:"id"`
	ClassName string `json:"class_name"`
}

// Notification is one logical event. Payload holds the serialized data the
// caller supplied; it is opaque at the storage layer.
type Notification struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	TypeID           string          `json:"type_id" db:"type_id"`
	FromPersonID     string          `json:"from_person_id,omitempty" db:"from_person_id"`
	ToPersonID       string          `json:"to_person_id,omitempty" db:"to_person_id"`
	Payload          json.RawMessage `json:"payload" db:"payload"`
	Priority         Priority        `json:"priority" db:"priority"`
	TriggeringEntity *EntityRef      `json:"triggering_entity,omitempty" db:"triggering_entity"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Message is one delivery unit scoped to a (Notification, ChannelConfig)
// pair. Status, RetryCount, ErrorMessage and SentAt are mutated only by the
// delivery orchestrator.
type Message struct {
	ID             string        `json:"id" db:"id"`
	NotificationID string        `json:"notification_id" db:"notification_id"`
	ChannelID      string        `json:"channel_id" db:"channel_id"`
	Subject        string        `json:"subject" db:"subject"`
	Body           string        `json:"body" db:"body"`
	RecipientText  string        `json:"recipient_text" db:"recipient_text"`
	SenderText     string        `json:"sender_text,omitempty" db:"sender_text"`
	RetryCount     int           `json:"retry_count" db:"retry_count"`
	ErrorMessage   *string       `json:"error_message,omitempty" db:"error_message"`
	SentAt         *time.Time    `json:"sent_at,omitempty" db:"sent_at"`
	Status         MessageStatus `json:"status" db:"status"`
	Direction      Direction     `json:"direction" db:"direction"`
	ReadStatus     ReadStatus    `json:"read_status" db:"read_status"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// MessageAttachment links a stored file to a message under a display name.
type MessageAttachment struct {
	ID        string `json:"id" db:"id"`
	MessageID string `json:"message_id" db:"message_id"`
	FileID    string `json:"file_id" db:"file_id"`
	FileName  string `json:"file_name" db:"file_name"`
}

// StoredFile is the metadata of a file held in the file store.
type StoredFile struct {
	ID          string `json:"id" db:"id"`
	FileName    string `json:"file_name" db:"file_name"`
	ContentType string `json:"content_type" db:"content_type"`
	StorageKey  string `json:"storage_key" db:"storage_key"`
	Size        int64  `json:"size" db:"size"`
}

// AttachmentRef is the caller-supplied reference to a stored file.
type AttachmentRef struct {
	StoredFileID string `json:"stored_file_id" validate:"required"`
	FileName     string `json:"file_name" validate:"required,max=255"`
}

// OutboxEntry is a pending request to run a send attempt for a message. It
// is written in the same transaction as the state it refers to.
type OutboxEntry struct {
	ID          string     `json:"id" db:"id"`
	MessageID   string     `json:"message_id" db:"message_id"`
	AvailableAt time.Time  `json:"available_at" db:"available_at"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	Attempts    int        `json:"attempts" db:"attempts"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
