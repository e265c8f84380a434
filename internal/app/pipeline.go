package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/db"
	"courier/internal/external"
	"courier/internal/notifications/core"
	"courier/internal/notifications/email"
	"courier/internal/notifications/sms"
	"courier/internal/notifications/webhook"
	"courier/internal/queue"
	"courier/internal/storage"
	"courier/internal/types"
)

// LoadAWSConfig loads the default AWS configuration for the configured
// region. A non-empty EndpointURL (LocalStack) overrides every service
// endpoint.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// Metrics is what the binaries record: per-attempt delivery metrics and
// outbox relay throughput.
type Metrics interface {
	core.DeliveryMetrics
	queue.RelayMetrics
}

// NewMetrics returns CloudWatch metrics, or a no-op recorder when metrics
// are disabled or the environment is local.
func NewMetrics(cfg *config.Config, awsCfg aws.Config, log types.Logger) Metrics {
	if !cfg.Observability.EnableMetrics || cfg.Environment == "local" {
		return core.NopMetrics{}
	}
	return core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, log)
}

// Database is the Postgres pool with the repositories and transaction
// manager built on it.
type Database struct {
	Pool  *pgxpool.Pool
	Store *db.Store
	Tx    *db.TxManager
}

func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Database{Pool: pool, Store: db.NewStore(pool), Tx: db.NewTxManager(pool)}, nil
}

func (d *Database) Close() { d.Pool.Close() }

// Pipeline holds the long-lived collaborators of a binary that runs the
// orchestrator. Close releases them.
type Pipeline struct {
	*Database
	Redis        *redis.Client
	Catalog      *cache.CatalogCache
	Adapters     *core.AdapterRegistry
	Metrics      Metrics
	Orchestrator *core.Orchestrator
}

// NewPipeline connects to Postgres (and redis when configured), builds the
// channel adapters selected by cfg and assembles the orchestrator.
func NewPipeline(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*Pipeline, error) {
	log := NewSlogAdapter(logger)

	database, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Database: database}

	opts := cache.Options{
		LocalTTL:  cfg.Redis.LocalTTL,
		RemoteTTL: cfg.Redis.TTL,
		Logger:    log.With("component", "catalog_cache"),
	}
	if p.Redis = cache.NewRedisClient(cfg.Redis); p.Redis != nil {
		opts.Remote = cache.NewRedisStore(p.Redis)
	}
	p.Catalog = cache.NewCatalogCache(db.NewCatalogRepository(p.Pool), opts)

	clients, err := external.NewClientRegistry(cfg, awsCfg, logger)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("external clients: %w", err)
	}
	p.Adapters = NewAdapters(cfg, clients, log)
	p.Metrics = NewMetrics(cfg, awsCfg, log)

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWS.EndpointURL != ""
	})

	p.Orchestrator = core.NewOrchestrator(core.Deps{
		Catalog:  p.Catalog,
		Repos:    p.Store,
		Tx:       p.Tx,
		Adapters: p.Adapters,
		Files:    storage.NewS3FileStore(s3Client, cfg.AWS.AttachmentBucket),
		Metrics:  p.Metrics,
		Logger:   log.With("component", "orchestrator"),
	})
	return p, nil
}

// NewAdapters registers one email adapter (the configured provider), the
// SMS adapter when a gateway exists, and the webhook adapter.
func NewAdapters(cfg *config.Config, clients *external.ClientRegistry, log types.Logger) *core.AdapterRegistry {
	reg := core.NewAdapterRegistry(
		email.NewAdapter(email.Config{
			ID:                 clients.EmailAdapterID,
			Provider:           clients.Email,
			FromAddress:        cfg.Email.FromAddress,
			FromName:           cfg.Email.FromName,
			MaxAttachmentBytes: int64(cfg.Email.MaxAttachmentMiB) << 20,
			Logger:             log.With("adapter", string(clients.EmailAdapterID)),
		}),
		webhook.NewAdapter(cfg.Webhook, log.With("adapter", string(types.AdapterWebhookHTTP))),
	)
	if clients.SMS != nil {
		reg.Register(sms.NewAdapter(clients.SMS, cfg.SMS.SenderID, log.With("adapter", string(types.AdapterSMSGateway))))
	}
	return reg
}

// Close releases the database pool and the redis client.
func (p *Pipeline) Close() {
	if p.Redis != nil {
		_ = p.Redis.Close()
	}
	p.Database.Close()
}
