// Package core is the delivery pipeline: it turns one logical notification
// into per-channel messages, renders their content, persists delivery state
// and drives send attempts through the message state machine with bounded
// retry.
package core

import (
	"context"
	"io"
	"time"

	"courier/internal/types"
)

// FileStore is the binary side of stored files.
type FileStore interface {
	Exists(ctx context.Context, f *types.StoredFile) (bool, error)
	Open(ctx context.Context, f *types.StoredFile) (io.ReadCloser, error)
}

// MetricResult categorizes a send attempt for metrics reporting.
type MetricResult string

const (
	MetricSent    MetricResult = "sent"
	MetricRetry   MetricResult = "retry"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// DeliveryMetrics abstracts telemetry for send attempts.
type DeliveryMetrics interface {
	RecordAttempt(ctx context.Context, channel string, adapter types.AdapterID, result MetricResult)
	RecordLatency(ctx context.Context, channel string, d time.Duration)
}

// Request is the input to SendNotification. Sender and Receiver are optional
// individually but at least one form of each must resolve when a message is
// sent.
type Request struct {
	TypeID           string
	Sender           Participant
	Receiver         Participant
	Data             any
	Priority         types.Priority
	Attachments      []types.AttachmentRef
	TriggeringEntity *types.EntityRef
	// ExplicitChannelID bypasses the channel resolver when set.
	ExplicitChannelID string
}

// MessageRef identifies a message created by SendNotification.
type MessageRef struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

// WorkItem is a send attempt that must run later. Each one is also
// persisted as an outbox row in the same transaction.
type WorkItem struct {
	MessageID string    `json:"message_id"`
	NotBefore time.Time `json:"not_before"`
}

// SendResult describes what SendNotification did. A zero NotificationID
// means the call was suppressed (type disabled or receiver opted out).
type SendResult struct {
	NotificationID string       `json:"notification_id,omitempty"`
	Suppressed     string       `json:"suppressed,omitempty"`
	Messages       []MessageRef `json:"messages"`
	Deferred       []WorkItem   `json:"deferred"`
}

const (
	SuppressedDisabled = "type_disabled"
	SuppressedOptOut   = "receiver_opted_out"
)
