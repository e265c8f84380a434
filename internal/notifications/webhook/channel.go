// Package webhook is the webhook channel adapter. It detects the target
// platform (Slack, Teams, Discord, Google Chat or generic JSON) from the
// URL, signs the body with HMAC-SHA256 and POSTs it through an SSRF-guarded
// client with a circuit breaker per destination host.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"courier/internal/config"
	"courier/internal/external"
	"courier/internal/notifications/core"
	"courier/internal/security"
	"courier/internal/types"
)

const (
	maxResponseBodyRead = 4096
	// Per-host clients (and their breakers) are dropped after an idle hour.
	hostClientTTL = time.Hour
)

// Adapter implements core.ChannelAdapter for webhooks. The receiver address
// is the destination URL.
type Adapter struct {
	registry   *PlatformRegistry
	signer     *Signer
	httpClient *http.Client
	policy     external.RetryPolicy
	userAgent  string
	hosts      *gocache.Cache
	clientOpts []external.BaseClientOption
	logger     types.Logger
	clock      types.Clock
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithHTTPClient replaces the SSRF-guarded client. Tests use it to reach
// httptest servers on loopback.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

func WithClock(c types.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

func WithRetryPolicy(p external.RetryPolicy, opts ...external.BaseClientOption) Option {
	return func(a *Adapter) {
		a.policy = p
		a.clientOpts = opts
	}
}

func NewAdapter(cfg config.WebhookConfig, logger types.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = types.NopLogger{}
	}
	a := &Adapter{
		registry:  NewPlatformRegistry(),
		signer:    NewSigner(cfg.SigningSecret.Unmask(), cfg.PreviousSigningSecret.Unmask(), cfg.PreviousSecretUntil),
		policy:    external.DefaultRetryPolicy(),
		userAgent: cfg.UserAgent,
		hosts:     gocache.New(hostClientTTL, 10*time.Minute),
		logger:    logger,
		clock:     types.RealClock{},
	}
	if cfg.AllowPrivateTargets {
		a.httpClient = &http.Client{Timeout: cfg.Timeout}
	} else {
		a.httpClient = security.NewSafeHTTPClient(cfg.Timeout, cfg.MaxRedirects)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ID() types.AdapterID { return types.AdapterWebhookHTTP }

func (a *Adapter) AddressOf(p *types.Person) string {
	if p == nil {
		return ""
	}
	return p.WebhookURL
}

// Send POSTs the formatted message.
//
// Response handling:
//   - 2xx: success unless the platform reports a soft failure
//   - other 4xx: reported failure with the status and a body excerpt
//   - 429 / 5xx / network: retried by the client, then returned as error
//   - blocked destination: reported failure, never dialed
func (a *Adapter) Send(ctx context.Context, req core.SendRequest) (core.SendStatus, error) {
	dest := strings.TrimSpace(req.ToAddress)
	u, err := url.Parse(dest)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return core.SendStatus{Message: fmt.Sprintf("invalid webhook URL %s", types.RedactURL(dest))}, nil
	}

	now := a.clock.Now()
	platform := a.registry.Detect(dest)
	formatter := a.registry.Get(platform)

	card := Card{
		MessageID:      req.Message.ID,
		NotificationID: req.Message.NotificationID,
		Subject:        req.Message.Subject,
		Body:           req.Message.Body,
		SentAt:         now,
	}
	if req.Sender != nil {
		card.Sender = req.Sender.DisplayName()
	}
	payload, err := formatter.Format(card)
	if err != nil {
		return core.SendStatus{}, fmt.Errorf("format %s payload: %w", platform, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, bytes.NewReader(payload))
	if err != nil {
		return core.SendStatus{}, fmt.Errorf("build webhook request: %w", err)
	}
	deliveryID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Courier-Message-Id", req.Message.ID)
	httpReq.Header.Set("X-Courier-Delivery-Id", deliveryID)
	if a.signer != nil {
		httpReq.Header.Set(SignatureHeader, a.signer.Sign(payload, now))
	}

	a.logger.Info("delivering webhook",
		"dest", types.RedactURL(dest),
		"platform", string(platform),
		"message_id", req.Message.ID,
		"payload_size", len(payload),
	)

	resp, err := a.clientFor(u.Host).Do(httpReq)
	if err != nil {
		if security.IsSSRFError(err) {
			a.logger.Warn("webhook destination blocked", "dest", types.RedactURL(dest), "error", err)
			return core.SendStatus{Message: "webhook destination is not allowed"}, nil
		}
		return core.SendStatus{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.SendStatus{Message: fmt.Sprintf("client_error_%d: %s", resp.StatusCode, truncateBody(body))}, nil
	}
	if err := formatter.ValidateResponse(resp.StatusCode, body); err != nil {
		a.logger.Warn("webhook soft failure on 2xx", "dest", types.RedactURL(dest), "error", err)
		return core.SendStatus{Message: "soft_failure: " + err.Error()}, nil
	}

	return core.SendStatus{Success: true, ProviderID: providerMessageID(resp, deliveryID)}, nil
}

// clientFor returns the BaseClient for host, so one failing endpoint trips
// only its own breaker.
func (a *Adapter) clientFor(host string) *external.BaseClient {
	if c, ok := a.hosts.Get(host); ok {
		return c.(*external.BaseClient)
	}
	c := external.NewBaseClient(a.httpClient, "webhook:"+host, a.policy, a.userAgent, a.clientOpts...)
	if err := a.hosts.Add(host, c, gocache.DefaultExpiration); err != nil {
		// Another goroutine added host first; share its breaker.
		if existing, ok := a.hosts.Get(host); ok {
			return existing.(*external.BaseClient)
		}
	}
	return c
}

func providerMessageID(resp *http.Response, deliveryID string) string {
	for _, h := range []string{"X-Slack-Req-Id", "X-Request-Id"} {
		if v := resp.Header.Get(h); v != "" {
			return v
		}
	}
	return deliveryID
}

var _ core.ChannelAdapter = (*Adapter)(nil)
