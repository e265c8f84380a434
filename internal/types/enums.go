package types

import "fmt"

// Priority orders notifications by urgency. Higher values are more urgent.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	if n, ok := priorityNames[p]; ok {
		return n
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts a lowercase name into a Priority.
func ParsePriority(s string) (Priority, error) {
	for p, n := range priorityNames {
		if n == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MessageStatus is the lifecycle state of a Message.
//
//	preparing -> sent | wait_to_retry | failed
//	wait_to_retry -> sent | wait_to_retry | failed
type MessageStatus string

const (
	MessageStatusPreparing   MessageStatus = "preparing"
	MessageStatusWaitToRetry MessageStatus = "wait_to_retry"
	MessageStatusSent        MessageStatus = "sent"
	MessageStatusFailed      MessageStatus = "failed"
)

// IsTerminal reports whether no further send attempts may happen.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// Direction of a message relative to the platform.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// ReadStatus tracks whether the receiver has seen a message.
type ReadStatus string

const (
	ReadStatusUnread ReadStatus = "unread"
	ReadStatusRead   ReadStatus = "read"
)

// ContentFormat is the body format a channel accepts and a template produces.
type ContentFormat string

const (
	FormatPlainText ContentFormat = "plain_text"
	FormatHTML      ContentFormat = "html"
	FormatMarkdown  ContentFormat = "markdown"
)

// AdapterID is the stable identifier of a channel send adapter.
type AdapterID string

const (
	AdapterEmailSES      AdapterID = "email.ses"
	AdapterEmailPostmark AdapterID = "email.postmark"
	AdapterEmailStub     AdapterID = "email.stub"
	AdapterSMSGateway    AdapterID = "sms.gateway"
	AdapterWebhookHTTP   AdapterID = "webhook.http"
)
