// Package queue moves send jobs between the database and SQS: the relay
// drains the outbox into the send queue, the sweeper re-enqueues messages
// that lost their job, and JobPublisher is the SQS producer both use.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"courier/internal/types"
)

// maxDelay is the SQS DelaySeconds ceiling.
const maxDelay = 900 * time.Second

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher publishes send jobs. The send worker uses it to schedule
// retries, the relay to dispatch outbox rows.
type Publisher interface {
	Publish(ctx context.Context, job types.SendJob, delay time.Duration) error
}

// JobPublisher serializes SendJobs onto the send queue.
type JobPublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
	now      func() time.Time
}

func NewJobPublisher(client SQSSender, queueURL string, logger types.Logger) *JobPublisher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &JobPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish sends job with the given delay. Delays are clamped to [0, 900s];
// a longer wait must go through the outbox instead. EnqueuedAt is stamped
// when unset.
func (p *JobPublisher) Publish(ctx context.Context, job types.SendJob, delay time.Duration) error {
	if job.MessageID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "send job has no message id", nil)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = p.now()
	}
	if job.TraceID == "" {
		job.TraceID = types.GetRequestID(ctx)
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("job publisher: failed to marshal send job: %w", err)
	}

	delay = min(max(delay, 0), maxDelay)
	delaySec := int32(delay / time.Second)

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"message_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.MessageID),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send job for message %s", job.MessageID), err)
	}

	p.logger.Info("send job published",
		"message_id", job.MessageID,
		"attempt", job.Attempt,
		"delay_seconds", delaySec,
		"trace_id", job.TraceID,
	)
	return nil
}

var _ Publisher = (*JobPublisher)(nil)
