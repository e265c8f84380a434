// Package main is the entrypoint for the Send Worker Lambda function.
//
// The worker consumes SendJobs from the send queue and runs one send
// attempt per job through the orchestrator. Records of a batch are
// processed concurrently (WORKER_PARALLELISM) and reported back with
// partial batch failures, so SQS redelivers only the records that hit an
// infrastructure error.
//
// Outcome per record:
//   - sent, permanently failed, or already final: ACK
//   - WaitToRetry: publish the next job with the retry delay, then ACK
//   - delivery, not-found or validation errors: log and ACK; a redelivery
//     cannot succeed
//   - anything else (database, queue, file store): batch item failure
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"courier/internal/app"
	"courier/internal/notifications/core"
	"courier/internal/queue"
	"courier/internal/types"
)

// Sender runs one send attempt. *core.Orchestrator implements it.
type Sender interface {
	SendAsync(ctx context.Context, messageID string) error
}

// Handler holds the dependencies for the send worker Lambda handler.
type Handler struct {
	sender    Sender
	publisher queue.Publisher
	parallel  int
	logger    types.Logger
	now       func() time.Time
}

func NewHandler(sender Sender, publisher queue.Publisher, parallel int, logger types.Logger) *Handler {
	if parallel < 1 {
		parallel = 1
	}
	return &Handler{
		sender:    sender,
		publisher: publisher,
		parallel:  parallel,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes an SQS batch. It never returns an error; failures are
// reported per record.
func (h *Handler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var (
		mu       sync.Mutex
		response events.SQSEventResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallel)
	for _, record := range ev.Records {
		g.Go(func() error {
			if err := h.processRecord(gctx, record); err != nil {
				h.logger.Error("failed to process send job",
					"sqs_message_id", record.MessageId,
					"error", err.Error(),
				)
				mu.Lock()
				response.BatchItemFailures = append(response.BatchItemFailures,
					events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return response, nil
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var job types.SendJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil || job.MessageID == "" {
		// Unparseable jobs can never succeed; ACK so they do not loop.
		h.logger.Error("dropping malformed send job", "sqs_message_id", record.MessageId, "body_size", len(record.Body))
		return nil
	}
	if job.TraceID != "" {
		ctx = types.WithRequestID(ctx, job.TraceID)
	}

	logger := h.logger.With(
		"message_id", job.MessageID,
		"attempt", job.Attempt,
		"trace_id", job.TraceID,
	)
	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if ms, err := strconv.ParseInt(sent, 10, 64); err == nil {
			logger = logger.With("queue_lag_ms", h.now().Sub(time.UnixMilli(ms)).Milliseconds())
		}
	}
	logger.Info("processing send job")
	ctx = types.WithLogger(ctx, logger)

	err := h.sender.SendAsync(ctx, job.MessageID)
	if err == nil {
		return nil
	}

	var pending *core.RetryPendingError
	if errors.As(err, &pending) {
		next := types.SendJob{MessageID: job.MessageID, Attempt: job.Attempt + 1, TraceID: job.TraceID}
		if pubErr := h.publisher.Publish(ctx, next, pending.Delay); pubErr != nil {
			// The message stays in wait_to_retry; redelivering this record
			// runs the retry now instead of after the delay.
			return fmt.Errorf("schedule retry: %w", pubErr)
		}
		return nil
	}

	if isPermanent(err) {
		logger.Error("send job cannot be processed", "code", string(types.CodeOf(err)), "error", err.Error())
		return nil
	}
	return err
}

// isPermanent reports whether redelivering the job cannot change the result.
func isPermanent(err error) bool {
	code := string(types.CodeOf(err))
	for _, prefix := range []string{"delivery_", "not_found_", "validation_"} {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	slogger := app.NewLogger(cfg.LogLevel).With("service", cfg.Service, "component", "send-worker")
	logger := app.NewSlogAdapter(slogger)

	ctx := context.Background()
	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	pipeline, err := app.NewPipeline(ctx, cfg, awsCfg, slogger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer pipeline.Close()

	publisher := queue.NewJobPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.SendQueueURL, logger)
	h := NewHandler(pipeline.Orchestrator, publisher, cfg.Delivery.WorkerParallel, logger)

	logger.Info("send worker started",
		"version", cfg.Build.Version,
		"parallelism", cfg.Delivery.WorkerParallel,
		"adapters", pipeline.Adapters.IDs(),
	)
	lambda.Start(h.Handle)
	return nil
}
