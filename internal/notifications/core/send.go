package core

import (
	"context"
	"fmt"
	"time"

	"courier/internal/types"
)

// attemptResult carries what happened inside the transaction out to the
// post-commit metrics and retry signalling.
type attemptResult struct {
	skipped bool
	status  types.MessageStatus
	retries int
	reason  string
	channel string
	adapter types.AdapterID
}

// SendAsync runs one send attempt for a message. The message row is locked
// for the whole attempt, and the state change is committed before any retry
// signal is returned:
//
//   - success: sent, error cleared, sent_at stamped; returns nil
//   - failure below the ceiling: wait_to_retry; returns *RetryPendingError
//   - failure at the ceiling: failed; returns nil
//
// A message already sent or failed is left alone and nil is returned.
// Resolution errors (unknown adapter, unresolvable participants) are
// returned without touching the message.
func (o *Orchestrator) SendAsync(ctx context.Context, messageID string) error {
	var res attemptResult
	log := o.loggerFor(ctx).With("message_id", messageID)

	err := o.tx.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		res = attemptResult{}

		m, err := repos.Messages().GetForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		if m.Status.IsTerminal() {
			res.skipped = true
			res.status = m.Status
			return nil
		}

		n, err := repos.Notifications().GetByID(ctx, m.NotificationID)
		if err != nil {
			return err
		}
		ch, err := o.catalog.Channel(ctx, m.ChannelID)
		if err != nil {
			return err
		}
		adapter, err := o.adapters.Get(ch.AdapterID, ch.Name)
		if err != nil {
			return err
		}
		res.channel, res.adapter = ch.ID, adapter.ID()

		sender, receiver, err := resolveParticipants(ctx, repos.Persons(), n, m)
		if err != nil {
			return err
		}

		atts, err := o.attachments.Collect(ctx, repos, m.ID)
		if err != nil {
			return err
		}
		defer closeAll(atts)

		m.RecipientText = receiver.AddressFor(adapter)

		start := o.clock.Now()
		out := guardedSend(ctx, adapter, SendRequest{
			Sender:      sender,
			Receiver:    receiver,
			FromAddress: sender.AddressFor(adapter),
			ToAddress:   m.RecipientText,
			Format:      ch.SupportedFormat,
			Message:     m,
			Attachments: atts,
		}, log)
		now := o.clock.Now()
		o.metrics.RecordLatency(ctx, ch.ID, now.Sub(start))

		applyOutcome(m, out, now)
		if err := repos.Messages().UpdateDelivery(ctx, m); err != nil {
			return err
		}

		res.status = m.Status
		res.retries = m.RetryCount
		res.reason = out.Message
		return nil
	})
	if err != nil {
		return fmt.Errorf("SendAsync %s: %w", messageID, err)
	}

	if res.skipped {
		log.Info("message already final, send skipped", "status", string(res.status))
		return nil
	}

	switch res.status {
	case types.MessageStatusSent:
		o.metrics.RecordAttempt(ctx, res.channel, res.adapter, MetricSent)
		log.Info("message sent", "channel_id", res.channel)
		return nil
	case types.MessageStatusFailed:
		o.metrics.RecordAttempt(ctx, res.channel, res.adapter, MetricFailed)
		log.Error("message failed permanently", "channel_id", res.channel, "retry_count", res.retries, "reason", res.reason)
		return nil
	default:
		o.metrics.RecordAttempt(ctx, res.channel, res.adapter, MetricRetry)
		delay := DelayFor(res.retries)
		log.Warn("send attempt failed, will retry", "channel_id", res.channel, "retry_count", res.retries, "delay", delay.String())
		return &RetryPendingError{MessageID: messageID, RetryCount: res.retries, Delay: delay, Reason: res.reason}
	}
}

// loggerFor prefers the request-scoped logger a caller attached to ctx.
func (o *Orchestrator) loggerFor(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return o.logger
}

// applyOutcome is the state machine transition for one attempt.
func applyOutcome(m *types.Message, out Outcome, now time.Time) {
	m.UpdatedAt = now
	if out.Success {
		m.Status = types.MessageStatusSent
		m.ErrorMessage = nil
		m.SentAt = &now
		return
	}

	m.RetryCount++
	reason := out.Message
	m.ErrorMessage = &reason
	if m.RetryCount < MaxRetries {
		m.Status = types.MessageStatusWaitToRetry
	} else {
		m.Status = types.MessageStatusFailed
	}
}
