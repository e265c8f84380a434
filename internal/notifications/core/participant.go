package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier/internal/types"
)

// Participant is a message sender or receiver: a known person or a raw
// address string.
type Participant interface {
	// AddressFor returns the address to use on the adapter's channel.
	AddressFor(a ChannelAdapter) string
	DisplayName() string
	// PersonID is empty for raw addresses.
	PersonID() string
}

// PersonParticipant is a known identity whose address is derived per
// channel.
type PersonParticipant struct {
	Person *types.Person
}

func (p PersonParticipant) AddressFor(a ChannelAdapter) string { return a.AddressOf(p.Person) }
func (p PersonParticipant) DisplayName() string               { return p.Person.FullName }
func (p PersonParticipant) PersonID() string                  { return p.Person.ID }

// RawAddress is an address string used as-is on every channel.
type RawAddress string

func (r RawAddress) AddressFor(ChannelAdapter) string { return string(r) }
func (r RawAddress) DisplayName() string              { return "" }
func (r RawAddress) PersonID() string                 { return "" }

// resolveParticipants rebuilds the sender and receiver of a stored message.
// A linked person wins over stored address text. Missing both is a data
// integrity problem and is never retried.
func resolveParticipants(ctx context.Context, persons types.PersonRepository, n *types.Notification, m *types.Message) (sender, receiver Participant, err error) {
	sender, err = resolveOne(ctx, persons, n.FromPersonID, m.SenderText, "sender", m.ID)
	if err != nil {
		return nil, nil, err
	}
	receiver, err = resolveOne(ctx, persons, n.ToPersonID, m.RecipientText, "receiver", m.ID)
	if err != nil {
		return nil, nil, err
	}
	return sender, receiver, nil
}

func resolveOne(ctx context.Context, persons types.PersonRepository, personID, text, role, messageID string) (Participant, error) {
	if personID != "" {
		p, err := persons.GetByID(ctx, personID)
		if err == nil {
			return PersonParticipant{Person: p}, nil
		}
		if types.CodeOf(err) != types.ErrCodeNotFoundPerson {
			return nil, fmt.Errorf("load %s person: %w", role, err)
		}
	}
	if strings.TrimSpace(text) != "" {
		return RawAddress(text), nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeParticipantUnresolved,
		fmt.Sprintf("message %s has neither a %s person nor %s address text", messageID, role, role),
		errors.New(role+" unresolved"),
		map[string]any{"message_id": messageID, "role": role})
}
