// Package sms is the SMS channel adapter over an external.SMSGateway.
package sms

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"courier/internal/external"
	"courier/internal/notifications/core"
	"courier/internal/types"
)

// maxBodyRunes caps a message at ten concatenated UCS-2 segments.
const maxBodyRunes = 670

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type Adapter struct {
	gateway  external.SMSGateway
	senderID string
	logger   types.Logger
}

func NewAdapter(gateway external.SMSGateway, senderID string, logger types.Logger) *Adapter {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Adapter{gateway: gateway, senderID: senderID, logger: logger}
}

func (a *Adapter) ID() types.AdapterID { return types.AdapterSMSGateway }

func (a *Adapter) AddressOf(p *types.Person) string {
	if p == nil {
		return ""
	}
	return p.MobileNumber
}

// Send delivers the message body as text; the subject is not carried.
// Attachments are ignored since SMS channels never support them.
func (a *Adapter) Send(ctx context.Context, req core.SendRequest) (core.SendStatus, error) {
	to := normalize(req.ToAddress)
	if !e164.MatchString(to) {
		return core.SendStatus{Message: "invalid mobile number " + types.RedactPhone(req.ToAddress)}, nil
	}

	body := strings.TrimSpace(req.Message.Body)
	if body == "" {
		return core.SendStatus{Message: "empty message body"}, nil
	}
	if n := utf8.RuneCountInString(body); n > maxBodyRunes {
		a.logger.Warn("sms body truncated", "message_id", req.Message.ID, "runes", n, "limit", maxBodyRunes)
		body = string([]rune(body)[:maxBodyRunes-1]) + "…"
	}

	a.logger.Info("attempting sms delivery", "dest", types.RedactPhone(to), "message_id", req.Message.ID)
	id, err := a.gateway.Send(ctx, external.SMSInput{
		To:          to,
		SenderID:    a.senderID,
		Body:        body,
		ReferenceID: req.Message.ID,
	})
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeValidationInvalidAddress {
			return core.SendStatus{Message: err.Error()}, nil
		}
		return core.SendStatus{}, err
	}
	return core.SendStatus{Success: true, ProviderID: id}, nil
}

// normalize strips common formatting characters from a phone number.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

var _ core.ChannelAdapter = (*Adapter)(nil)
