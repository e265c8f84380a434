package external

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"

	"courier/internal/config"
	"courier/internal/types"
)

// ClientRegistry holds the vendor transports selected by configuration.
// SMS is nil when no gateway is configured.
type ClientRegistry struct {
	Email          EmailProvider
	EmailAdapterID types.AdapterID
	SMS            SMSGateway
}

// NewClientRegistry builds the transports. APP_ENV=local forces stubs so
// the pipeline boots without vendor credentials.
func NewClientRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Environment == "local" {
		logger.Info("initializing external clients in STUB mode", "environment", cfg.Environment)
		stubLogger := logger.With("mode", "stub")
		return &ClientRegistry{
			Email:          NewStubEmailProvider(stubLogger),
			EmailAdapterID: types.AdapterEmailStub,
			SMS:            NewStubSMSGateway(stubLogger),
		}, nil
	}

	reg := &ClientRegistry{}

	switch cfg.Email.Provider {
	case "ses":
		reg.Email = NewSESClient(awsCfg, SESClientConfig{
			ConfigSetName: cfg.Email.SESConfigSet,
			Logger:        logger.With("client", "ses"),
		})
		reg.EmailAdapterID = types.AdapterEmailSES
	case "postmark":
		pm, err := NewPostmarkClient(PostmarkClientConfig{
			ServerToken:   cfg.Email.PostmarkServer.Unmask(),
			AccountToken:  cfg.Email.PostmarkAccount.Unmask(),
			MessageStream: cfg.Email.PostmarkStream,
			Logger:        logger.With("client", "postmark"),
		})
		if err != nil {
			return nil, err
		}
		reg.Email = pm
		reg.EmailAdapterID = types.AdapterEmailPostmark
	case "stub":
		reg.Email = NewStubEmailProvider(logger.With("mode", "stub"))
		reg.EmailAdapterID = types.AdapterEmailStub
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}

	if cfg.SMS.GatewayURL != "" {
		base := NewBaseClient(
			&http.Client{Timeout: cfg.SMS.Timeout},
			"sms-gateway",
			DefaultRetryPolicy(),
			"Courier-SMS/1.0",
			WithUpstreamCode(types.ErrCodeUpstreamSMSGateway),
		)
		reg.SMS = NewGatewayClient(base, SMSGatewayConfig{
			BaseURL: cfg.SMS.GatewayURL,
			APIKey:  cfg.SMS.APIKey.Unmask(),
			Logger:  logger.With("client", "sms-gateway"),
		})
	}

	logger.Info("initialized external clients",
		"environment", cfg.Environment,
		"email_adapter", reg.EmailAdapterID,
		"sms_enabled", reg.SMS != nil,
	)
	return reg, nil
}
