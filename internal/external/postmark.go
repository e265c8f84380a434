package external

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"

	"courier/internal/types"
)

// Postmark API error codes that mean the recipient will never accept mail.
const (
	postmarkInvalidEmail      = 300
	postmarkInactiveRecipient = 406
)

// PostmarkAPI is the subset of *postmark.Client used by PostmarkClient.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type PostmarkClientConfig struct {
	ServerToken   string
	AccountToken  string
	MessageStream string
	Logger        *slog.Logger
}

// PostmarkClient implements EmailProvider over Postmark's transactional API.
type PostmarkClient struct {
	api    PostmarkAPI
	stream string
	logger *slog.Logger
}

func NewPostmarkClient(cfg PostmarkClientConfig) (*PostmarkClient, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("postmark: server token is required")
	}
	return NewPostmarkClientWithAPI(postmark.NewClient(cfg.ServerToken, cfg.AccountToken), cfg), nil
}

func NewPostmarkClientWithAPI(api PostmarkAPI, cfg PostmarkClientConfig) *PostmarkClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostmarkClient{api: api, stream: cfg.MessageStream, logger: logger}
}

// Send transmits input. Attachments travel base64-encoded in the JSON body.
func (c *PostmarkClient) Send(ctx context.Context, input EmailInput) (string, error) {
	email := postmark.Email{
		From:          input.From.String(),
		To:            input.To,
		ReplyTo:       input.ReplyTo,
		Subject:       input.Subject,
		HTMLBody:      input.BodyHTML,
		TextBody:      input.BodyText,
		MessageStream: c.stream,
	}
	if input.ReferenceID != "" {
		email.Metadata = map[string]string{"message_id": input.ReferenceID}
	}
	for _, a := range input.Attachments {
		email.Attachments = append(email.Attachments, postmark.Attachment{
			Name:        a.FileName,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	resp, err := c.api.SendEmail(ctx, email)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("postmark error: %v", err), err)
	}
	switch resp.ErrorCode {
	case 0:
	case postmarkInvalidEmail, postmarkInactiveRecipient:
		return "", types.NewAppError(types.ErrCodeEmailBlocked,
			fmt.Sprintf("postmark rejected recipient: %d - %s", resp.ErrorCode, resp.Message), nil)
	default:
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("postmark error: %d - %s", resp.ErrorCode, resp.Message), nil)
	}

	c.logger.DebugContext(ctx, "postmark accepted email", "reference_id", input.ReferenceID)
	return resp.MessageID, nil
}

var _ EmailProvider = (*PostmarkClient)(nil)
