package external

import "context"

// Identity is a display name plus address.
type Identity struct {
	Name    string
	Address string
}

// String renders "Name <address>", or the bare address when there is no
// name.
func (i Identity) String() string {
	if i.Name == "" {
		return i.Address
	}
	return i.Name + " <" + i.Address + ">"
}

// EmailAttachment is a fully buffered attachment. Providers need the whole
// payload (base64 for Postmark, a raw MIME part for SES).
type EmailAttachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// EmailInput is a pre-rendered email. At least one of BodyHTML and BodyText
// is set.
type EmailInput struct {
	From        Identity
	To          string
	ReplyTo     string
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
	Attachments []EmailAttachment
}

// EmailProvider sends one email and returns the provider message ID.
type EmailProvider interface {
	Send(ctx context.Context, input EmailInput) (string, error)
}

// SMSInput is one text message to a single E.164 number.
type SMSInput struct {
	To          string
	SenderID    string
	Body        string
	ReferenceID string
}

// SMSGateway sends one SMS and returns the gateway message ID.
type SMSGateway interface {
	Send(ctx context.Context, input SMSInput) (string, error)
}
