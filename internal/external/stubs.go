package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// StubEmailProvider logs instead of sending. Used when APP_ENV=local or
// EMAIL_PROVIDER=stub. Sent inputs are kept for inspection.
type StubEmailProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []EmailInput
}

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input EmailInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send email called",
		"reference_id", input.ReferenceID,
		"subject", input.Subject,
		"attachments", len(input.Attachments),
	)
	s.mu.Lock()
	s.sent = append(s.sent, input)
	s.mu.Unlock()
	return fmt.Sprintf("msg_stub_%s", input.ReferenceID), nil
}

// Sent returns a copy of every input passed to Send.
func (s *StubEmailProvider) Sent() []EmailInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmailInput(nil), s.sent...)
}

// StubSMSGateway logs instead of sending.
type StubSMSGateway struct {
	logger *slog.Logger
}

func NewStubSMSGateway(logger *slog.Logger) *StubSMSGateway {
	return &StubSMSGateway{logger: logger}
}

func (s *StubSMSGateway) Send(ctx context.Context, input SMSInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send sms called",
		"reference_id", input.ReferenceID,
		"body_len", len(input.Body),
	)
	return fmt.Sprintf("sms_stub_%s", input.ReferenceID), nil
}

var _ EmailProvider = (*StubEmailProvider)(nil)
var _ SMSGateway = (*StubSMSGateway)(nil)
