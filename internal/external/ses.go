package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"courier/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESClient.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESClientConfig struct {
	// ConfigSetName is optional; empty means no configuration set.
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient implements EmailProvider using AWS SES v2. The SDK retries
// throttling internally, so no BaseClient is involved.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{
		api:           api,
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// Send uses SES simple content when there are no attachments and a raw
// MIME message otherwise.
//
// Error mapping:
//   - MessageRejected → ErrCodeEmailBlocked
//   - TooManyRequestsException → ErrCodeUpstreamRateLimited
//   - SendingPausedException → ErrCodeUpstreamUnavailable
//   - Other → ErrCodeUpstreamEmailProvider
func (s *SESClient) Send(ctx context.Context, input EmailInput) (string, error) {
	emailInput := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(input.From.String()),
		Destination: &sestypes.Destination{
			ToAddresses: []string{input.To},
		},
	}

	if len(input.Attachments) == 0 {
		emailInput.Content = &sestypes.EmailContent{Simple: simpleMessage(input)}
	} else {
		raw, err := buildMIME(input)
		if err != nil {
			return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build MIME message", err)
		}
		emailInput.Content = &sestypes.EmailContent{Raw: &sestypes.RawMessage{Data: raw}}
	}

	if input.ReplyTo != "" {
		emailInput.ReplyToAddresses = []string{input.ReplyTo}
	}
	if s.configSetName != "" {
		emailInput.ConfigurationSetName = aws.String(s.configSetName)
	}
	if input.ReferenceID != "" {
		emailInput.EmailTags = []sestypes.MessageTag{
			{Name: aws.String("MessageID"), Value: aws.String(input.ReferenceID)},
		}
	}

	result, err := s.api.SendEmail(ctx, emailInput)
	if err != nil {
		return "", mapSESError(err)
	}

	s.logger.DebugContext(ctx, "ses accepted email",
		"reference_id", input.ReferenceID,
		"attachments", len(input.Attachments),
	)
	return aws.ToString(result.MessageId), nil
}

func simpleMessage(input EmailInput) *sestypes.Message {
	msg := &sestypes.Message{
		Subject: &sestypes.Content{Data: aws.String(input.Subject), Charset: aws.String("UTF-8")},
		Body:    &sestypes.Body{},
	}
	if input.BodyHTML != "" {
		msg.Body.Html = &sestypes.Content{Data: aws.String(input.BodyHTML), Charset: aws.String("UTF-8")}
	}
	if input.BodyText != "" {
		msg.Body.Text = &sestypes.Content{Data: aws.String(input.BodyText), Charset: aws.String("UTF-8")}
	}
	return msg
}

func mapSESError(err error) error {
	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(types.ErrCodeEmailBlocked, fmt.Sprintf("SES rejected message: %v", err), err)
	}

	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, fmt.Sprintf("SES rate limit exceeded: %v", err), err)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SES account sending paused: %v", err), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("SES error: %v", err), err)
}

var _ EmailProvider = (*SESClient)(nil)
