package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"courier/internal/types"
)

type SMSGatewayConfig struct {
	// BaseURL is the gateway root; messages are POSTed to BaseURL + "/messages".
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

// GatewayClient implements SMSGateway against a JSON-over-HTTP SMS gateway
// authenticated with a bearer key.
type GatewayClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

func NewGatewayClient(base *BaseClient, cfg SMSGatewayConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayClient{
		base:    base,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type gatewayRequest struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Body      string `json:"body"`
	Reference string `json:"client_reference,omitempty"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Send posts one message. A 4xx from the gateway means the message itself
// is unacceptable (bad number, blocked content) and maps to
// ErrCodeValidationInvalidAddress; transport failures come from BaseClient.
func (c *GatewayClient) Send(ctx context.Context, input SMSInput) (string, error) {
	payload, err := json.Marshal(gatewayRequest{
		To:        input.To,
		From:      input.SenderID,
		Body:      input.Body,
		Reference: input.ReferenceID,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode sms request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sms request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSGateway, "failed to read sms gateway response", err)
	}

	var out gatewayResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode >= 400 {
		reason := out.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidAddress,
			fmt.Sprintf("sms gateway rejected message: %s", reason), nil,
			map[string]any{"status": resp.StatusCode})
	}

	c.logger.DebugContext(ctx, "sms gateway accepted message", "reference_id", input.ReferenceID, "status", out.Status)
	return out.ID, nil
}

var _ SMSGateway = (*GatewayClient)(nil)
