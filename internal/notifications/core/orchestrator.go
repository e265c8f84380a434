package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier/internal/types"
)

// Orchestrator creates notifications, fans them out to channels and owns the
// message state machine:
//
//	preparing     -> sent | wait_to_retry | failed
//	wait_to_retry -> sent | wait_to_retry | failed
type Orchestrator struct {
	catalog     types.CatalogReader
	repos       types.RepositoryRegistry
	tx          types.TransactionManager
	adapters    *AdapterRegistry
	resolver    *ChannelResolver
	renderer    *Renderer
	attachments *AttachmentAssembler
	metrics     DeliveryMetrics
	clock       types.Clock
	newID       func() string
	logger      types.Logger
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Catalog  types.CatalogReader
	Repos    types.RepositoryRegistry
	Tx       types.TransactionManager
	Adapters *AdapterRegistry
	Files    FileStore
	Metrics  DeliveryMetrics
	Clock    types.Clock
	Logger   types.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Metrics == nil {
		d.Metrics = NopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = types.RealClock{}
	}
	if d.Logger == nil {
		d.Logger = types.NopLogger{}
	}
	return &Orchestrator{
		catalog:     d.Catalog,
		repos:       d.Repos,
		tx:          d.Tx,
		adapters:    d.Adapters,
		resolver:    NewChannelResolver(d.Catalog, d.Adapters, d.Logger),
		renderer:    NewRenderer(),
		attachments: NewAttachmentAssembler(d.Files, d.Logger),
		metrics:     d.Metrics,
		clock:       d.Clock,
		newID:       uuid.NewString,
		logger:      d.Logger,
	}
}

// SendNotification records one notification and a message per target
// channel in a single transaction. Messages of time-sensitive types are sent
// before returning; the rest are returned as deferred work items and
// written to the outbox in the same transaction.
//
// Any preparation error (missing template, disallowed attachments, unknown
// stored file or adapter) rolls back the whole call. Delivery outcomes are
// never reported here; they are visible on the message rows.
func (o *Orchestrator) SendNotification(ctx context.Context, req Request) (*SendResult, error) {
	nt, err := o.catalog.NotificationType(ctx, req.TypeID)
	if err != nil {
		return nil, fmt.Errorf("SendNotification: %w", err)
	}
	log := o.logger.With("type_id", nt.ID)

	if nt.Disabled {
		log.Info("notification type disabled, nothing sent")
		return &SendResult{Suppressed: SuppressedDisabled}, nil
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.Receiver != nil && nt.CanOptOut && req.Receiver.PersonID() != "" {
		optedOut, err := o.repos.Preferences().IsOptedOut(ctx, req.Receiver.PersonID(), nt.ID)
		if err != nil {
			return nil, fmt.Errorf("SendNotification: opt-out lookup: %w", err)
		}
		if optedOut {
			log.Info("receiver opted out", "person_id", req.Receiver.PersonID())
			return &SendResult{Suppressed: SuppressedOptOut}, nil
		}
	}

	payload, err := json.Marshal(req.Data)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationPayloadEncode, "notification data could not be serialized", err)
	}

	targets, err := o.targets(ctx, nt, req)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	n := &types.Notification{
		ID:               o.newID(),
		Name:             nt.Name,
		TypeID:           nt.ID,
		FromPersonID:     req.Sender.PersonID(),
		ToPersonID:       req.Receiver.PersonID(),
		Payload:          payload,
		Priority:         req.Priority,
		TriggeringEntity: req.TriggeringEntity,
		CreatedAt:        now,
	}
	result := &SendResult{NotificationID: n.ID, Messages: []MessageRef{}, Deferred: []WorkItem{}}
	var inline []string

	err = o.tx.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		if err := repos.Notifications().Create(ctx, n); err != nil {
			return err
		}
		for _, ch := range targets {
			m, err := o.prepareChannel(ctx, repos, nt, n, req, ch)
			if err != nil {
				return err
			}
			result.Messages = append(result.Messages, MessageRef{MessageID: m.ID, ChannelID: ch.ID})

			if nt.IsTimeSensitive {
				inline = append(inline, m.ID)
				continue
			}
			item, err := o.enqueue(ctx, repos, m.ID, now)
			if err != nil {
				return err
			}
			result.Deferred = append(result.Deferred, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SendNotification: %w", err)
	}

	log.Info("notification created",
		"notification_id", n.ID,
		"channels", len(targets),
		"deferred", len(result.Deferred),
		"inline", len(inline),
	)

	// The notification is committed; from here on failures only defer.
	for _, id := range inline {
		if item := o.sendInline(ctx, log, id); item != nil {
			result.Deferred = append(result.Deferred, *item)
		}
	}
	return result, nil
}

func validateRequest(req Request) error {
	if req.Sender == nil {
		return types.NewAppError(types.ErrCodeParticipantUnresolved, "sender is required", nil)
	}
	if req.Receiver == nil {
		return types.NewAppError(types.ErrCodeParticipantUnresolved, "receiver is required", nil)
	}
	if blankAddress(req.Sender) {
		return types.NewAppError(types.ErrCodeParticipantUnresolved, "sender address is blank", nil)
	}
	if blankAddress(req.Receiver) {
		return types.NewAppError(types.ErrCodeParticipantUnresolved, "receiver address is blank", nil)
	}
	if !req.Priority.Valid() {
		return types.NewAppError(types.ErrCodeValidationPriority, fmt.Sprintf("invalid priority %d", int(req.Priority)), nil)
	}
	return nil
}

// blankAddress reports a raw address with nothing but whitespace, which no
// adapter can deliver to.
func blankAddress(p Participant) bool {
	r, ok := p.(RawAddress)
	return ok && strings.TrimSpace(string(r)) == ""
}

func (o *Orchestrator) targets(ctx context.Context, nt *types.NotificationType, req Request) ([]*types.ChannelConfig, error) {
	if req.ExplicitChannelID != "" {
		ch, err := o.catalog.Channel(ctx, req.ExplicitChannelID)
		if err != nil {
			return nil, fmt.Errorf("SendNotification: %w", err)
		}
		return []*types.ChannelConfig{ch}, nil
	}
	return o.resolver.Resolve(ctx, nt, req.Receiver, req.Priority)
}

// prepareChannel renders and stores one message with its attachment rows.
func (o *Orchestrator) prepareChannel(ctx context.Context, repos types.RepositoryRegistry, nt *types.NotificationType, n *types.Notification, req Request, ch *types.ChannelConfig) (*types.Message, error) {
	adapter, err := o.adapters.Get(ch.AdapterID, ch.Name)
	if err != nil {
		return nil, err
	}

	tmpl, err := o.catalog.Template(ctx, nt.ID, ch.SupportedFormat)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeTemplateNotFound {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeTemplateNotFound,
				fmt.Sprintf("There is no %s template found for the %s channel", nt.Name, ch.Name), err,
				map[string]any{"type_id": nt.ID, "channel_id": ch.ID, "format": string(ch.SupportedFormat)})
		}
		return nil, err
	}

	subject, body, err := o.renderer.Render(tmpl, n.Payload)
	if err != nil {
		return nil, err
	}

	m := &types.Message{
		ID:             o.newID(),
		NotificationID: n.ID,
		ChannelID:      ch.ID,
		Subject:        subject,
		Body:           body,
		RecipientText:  req.Receiver.AddressFor(adapter),
		SenderText:     req.Sender.AddressFor(adapter),
		Status:         types.MessageStatusPreparing,
		Direction:      types.DirectionOutgoing,
		ReadStatus:     types.ReadStatusUnread,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.CreatedAt,
	}
	if err := repos.Messages().Create(ctx, m); err != nil {
		return nil, err
	}

	if len(req.Attachments) == 0 {
		return m, nil
	}
	if !(nt.AllowAttachments && ch.SupportsAttachment) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeAttachmentsNotAllowed,
			"Attachments are not allowed for this notification type or channel.", nil,
			map[string]any{"type_id": nt.ID, "channel_id": ch.ID})
	}
	for _, ref := range req.Attachments {
		sf, err := repos.StoredFiles().GetByID(ctx, ref.StoredFileID)
		if err != nil {
			if types.CodeOf(err) == types.ErrCodeNotFoundStoredFile {
				return nil, types.NewAppErrorWithDetails(types.ErrCodeStoredFileNotFound,
					fmt.Sprintf("stored file %s does not exist", ref.StoredFileID), err,
					map[string]any{"stored_file_id": ref.StoredFileID})
			}
			return nil, err
		}
		if err := repos.Attachments().Create(ctx, &types.MessageAttachment{
			ID:        o.newID(),
			MessageID: m.ID,
			FileID:    sf.ID,
			FileName:  ref.FileName,
		}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// enqueue writes the outbox row that the relay turns into a send job.
func (o *Orchestrator) enqueue(ctx context.Context, repos types.RepositoryRegistry, messageID string, notBefore time.Time) (WorkItem, error) {
	entry := &types.OutboxEntry{
		ID:          o.newID(),
		MessageID:   messageID,
		AvailableAt: notBefore,
		CreatedAt:   o.clock.Now(),
	}
	if err := repos.Outbox().Enqueue(ctx, entry); err != nil {
		return WorkItem{}, err
	}
	return WorkItem{MessageID: messageID, NotBefore: notBefore}, nil
}

// sendInline runs a time-sensitive send right after the creating transaction
// committed. A WaitToRetry outcome is turned into an outbox row so the
// retry happens through the worker like any other message. Any other error
// leaves the message to the worker as well, due immediately. If even the
// outbox write fails the sweeper picks the message up after STALE_AFTER.
func (o *Orchestrator) sendInline(ctx context.Context, log types.Logger, messageID string) *WorkItem {
	err := o.SendAsync(ctx, messageID)
	if err == nil {
		return nil
	}

	notBefore := o.clock.Now()
	var pending *RetryPendingError
	if errors.As(err, &pending) {
		notBefore = notBefore.Add(pending.Delay)
	} else {
		log.Error("inline send failed, deferring to worker", "message_id", messageID, "error", err)
	}

	var item WorkItem
	err = o.tx.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		var err error
		item, err = o.enqueue(ctx, repos, messageID, notBefore)
		return err
	})
	if err != nil {
		log.Error("failed to defer inline message", "message_id", messageID, "error", err)
		return nil
	}
	return &item
}
