package types

import "time"

// SendJob is the SQS envelope that asks a send worker to run one send
// attempt for a message. Attempt is informational; the authoritative retry
// count lives on the Message row.
type SendJob struct {
	MessageID  string    `json:"message_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// IdempotencyRecord is the stored outcome of a request made with an
// Idempotency-Key. Zero Status means the first request is still running.
type IdempotencyRecord struct {
	Status int    `json:"status"`
	Body   []byte `json:"body,omitempty"`
}

func (r *IdempotencyRecord) InProgress() bool { return r.Status == 0 }
