// Package handlers contains the HTTP handlers of the Courier API:
//   - POST /v1/notifications submits a notification for delivery
//   - GET /v1/notifications/{id}/messages lists its per-channel messages
//   - GET /v1/messages/{id} returns one message with its delivery state
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"courier/internal/api"
	"courier/internal/notifications/core"
	"courier/internal/types"
)

// NotificationSender is the orchestrator entry point.
type NotificationSender interface {
	SendNotification(ctx context.Context, req core.Request) (*core.SendResult, error)
}

type NotificationReader interface {
	GetByID(ctx context.Context, id string) (*types.Notification, error)
}

type MessageReader interface {
	GetByID(ctx context.Context, id string) (*types.Message, error)
	ListByNotification(ctx context.Context, notificationID string) ([]*types.Message, error)
}

type PersonReader interface {
	GetByID(ctx context.Context, id string) (*types.Person, error)
}

// ParticipantInput names a sender or receiver either by person id or by a
// raw address, never both.
type ParticipantInput struct {
	PersonID string `json:"person_id,omitempty" validate:"required_without=Address,excluded_with=Address,max=64"`
	Address  string `json:"address,omitempty" validate:"required_without=PersonID,max=2048"`
}

// SendNotificationRequest is the body of POST /v1/notifications.
type SendNotificationRequest struct {
	TypeID           string                `json:"type_id" validate:"required,max=100"`
	Sender           *ParticipantInput     `json:"sender" validate:"required"`
	Receiver         *ParticipantInput     `json:"receiver" validate:"required"`
	Data             map[string]any        `json:"data,omitempty"`
	Priority         string                `json:"priority,omitempty" validate:"omitempty,priority"`
	ChannelID        string                `json:"channel_id,omitempty" validate:"omitempty,max=100"`
	Attachments      []types.AttachmentRef `json:"attachments,omitempty" validate:"max=20,dive"`
	TriggeringEntity *types.EntityRef      `json:"triggering_entity,omitempty"`
}

type NotificationHandler struct {
	sender        NotificationSender
	notifications NotificationReader
	messages      MessageReader
	persons       PersonReader
	validator     *api.Validator
	logger        *slog.Logger
}

func NewNotificationHandler(
	sender NotificationSender,
	notifications NotificationReader,
	messages MessageReader,
	persons PersonReader,
	v *api.Validator,
	l *slog.Logger,
) *NotificationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &NotificationHandler{
		sender:        sender,
		notifications: notifications,
		messages:      messages,
		persons:       persons,
		validator:     v,
		logger:        l,
	}
}

func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notifications", h.Send)
	r.Get("/notifications/{id}/messages", h.ListMessages)
	r.Get("/messages/{id}", h.GetMessage)
}

// Send answers 202 with the created message ids and deferred work, or 200
// when the notification was suppressed (type disabled, receiver opted out).
// Delivery outcomes are not part of the response; poll the messages.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		api.Error(w, r, err)
		return
	}

	priority := types.PriorityNormal
	if req.Priority != "" {
		priority, _ = types.ParsePriority(req.Priority)
	}

	ctx := r.Context()
	sender, err := h.participant(ctx, req.Sender, "sender")
	if err != nil {
		api.Error(w, r, err)
		return
	}
	receiver, err := h.participant(ctx, req.Receiver, "receiver")
	if err != nil {
		api.Error(w, r, err)
		return
	}

	res, err := h.sender.SendNotification(ctx, core.Request{
		TypeID:            req.TypeID,
		Sender:            sender,
		Receiver:          receiver,
		Data:              req.Data,
		Priority:          priority,
		Attachments:       req.Attachments,
		TriggeringEntity:  req.TriggeringEntity,
		ExplicitChannelID: req.ChannelID,
	})
	if err != nil {
		h.logger.Warn("send notification failed",
			"type_id", req.TypeID,
			"code", string(types.CodeOf(err)),
			"error", err,
			"request_id", types.GetRequestID(ctx),
		)
		api.Error(w, r, err)
		return
	}

	status := http.StatusAccepted
	if res.Suppressed != "" {
		status = http.StatusOK
	}
	api.Data(w, r, status, res)
}

// participant resolves a person id to a known person. An unknown person
// leaves the role unresolved.
func (h *NotificationHandler) participant(ctx context.Context, in *ParticipantInput, role string) (core.Participant, error) {
	if in.PersonID == "" {
		return core.RawAddress(in.Address), nil
	}
	p, err := h.persons.GetByID(ctx, in.PersonID)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundPerson {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeParticipantUnresolved,
				role+" person "+in.PersonID+" does not exist", err,
				map[string]any{"person_id": in.PersonID, "role": role})
		}
		return nil, err
	}
	return core.PersonParticipant{Person: p}, nil
}

func (h *NotificationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.notifications.GetByID(r.Context(), id); err != nil {
		api.Error(w, r, err)
		return
	}
	msgs, err := h.messages.ListByNotification(r.Context(), id)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*types.Message{}
	}
	api.Data(w, r, http.StatusOK, msgs)
}

func (h *NotificationHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := h.messages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.Data(w, r, http.StatusOK, m)
}
