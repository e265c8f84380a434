package email

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"courier/internal/external"
	"courier/internal/notifications/core"
	"courier/internal/types"
)

// Adapter is the email channel adapter. Bodies arrive pre-rendered from the
// orchestrator; the adapter only shapes them for an external.EmailProvider.
type Adapter struct {
	id                 types.AdapterID
	provider           external.EmailProvider
	from               external.Identity
	maxAttachmentBytes int64
	logger             types.Logger
}

type Config struct {
	// ID is the adapter identifier channels reference (email.ses,
	// email.postmark, email.stub).
	ID          types.AdapterID
	Provider    external.EmailProvider
	FromAddress string
	FromName    string
	// MaxAttachmentBytes caps the combined attachment size. Zero means no
	// limit.
	MaxAttachmentBytes int64
	Logger             types.Logger
}

func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Adapter{
		id:                 cfg.ID,
		provider:           cfg.Provider,
		from:               external.Identity{Name: cfg.FromName, Address: cfg.FromAddress},
		maxAttachmentBytes: cfg.MaxAttachmentBytes,
		logger:             logger,
	}
}

func (a *Adapter) ID() types.AdapterID { return a.id }

func (a *Adapter) AddressOf(p *types.Person) string {
	if p == nil {
		return ""
	}
	return p.Email
}

// Send delivers one message. The platform address is always the envelope
// sender; a sender with an email address becomes Reply-To and lends its
// display name. Bad recipient addresses, oversized attachments and
// provider blocklists are reported as failed sends; provider outages are
// returned as errors.
func (a *Adapter) Send(ctx context.Context, req core.SendRequest) (core.SendStatus, error) {
	to := strings.TrimSpace(req.ToAddress)
	a.logger.Info("attempting email delivery", "dest", types.RedactEmail(to), "message_id", req.Message.ID)

	if _, err := mail.ParseAddress(to); err != nil {
		return core.SendStatus{Message: fmt.Sprintf("invalid email address %q", types.RedactEmail(to))}, nil
	}

	input := external.EmailInput{
		From:        a.from,
		To:          to,
		Subject:     req.Message.Subject,
		ReferenceID: req.Message.ID,
	}
	if req.Sender != nil {
		if name := req.Sender.DisplayName(); name != "" {
			input.From.Name = name
		}
	}
	if _, err := mail.ParseAddress(req.FromAddress); err == nil && req.FromAddress != a.from.Address {
		input.ReplyTo = req.FromAddress
	}
	if req.Format == types.FormatHTML {
		input.BodyHTML = req.Message.Body
	} else {
		input.BodyText = req.Message.Body
	}

	atts, reason, err := a.bufferAttachments(req.Attachments)
	if err != nil {
		return core.SendStatus{}, err
	}
	if reason != "" {
		return core.SendStatus{Message: reason}, nil
	}
	input.Attachments = atts

	msgID, err := a.provider.Send(ctx, input)
	if err != nil {
		if IsBlocklistError(err) {
			a.logger.Warn("recipient blocked by provider", "dest", types.RedactEmail(to), "message_id", req.Message.ID)
			return core.SendStatus{Message: "recipient blocked by provider"}, nil
		}
		return core.SendStatus{}, err
	}
	return core.SendStatus{Success: true, ProviderID: msgID}, nil
}

// bufferAttachments reads every stream. The reason is non-empty when the
// attachments cannot be sent as given.
func (a *Adapter) bufferAttachments(in []core.Attachment) ([]external.EmailAttachment, string, error) {
	out := make([]external.EmailAttachment, 0, len(in))
	var total int64
	for _, att := range in {
		var r io.Reader = att.Content
		if a.maxAttachmentBytes > 0 {
			r = io.LimitReader(att.Content, a.maxAttachmentBytes-total+1)
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, "", types.NewAppError(types.ErrCodeUpstreamFileStore, fmt.Sprintf("failed to read attachment %s", att.FileName), err)
		}
		total += int64(len(b))
		if a.maxAttachmentBytes > 0 && total > a.maxAttachmentBytes {
			return nil, fmt.Sprintf("attachments exceed %d bytes", a.maxAttachmentBytes), nil
		}
		out = append(out, external.EmailAttachment{
			FileName:    att.FileName,
			ContentType: att.ContentType,
			Content:     b,
		})
	}
	return out, "", nil
}

var _ core.ChannelAdapter = (*Adapter)(nil)
