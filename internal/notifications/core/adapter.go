package core

import (
	"context"
	"fmt"
	"io"
	"sort"

	"courier/internal/types"
)

// ChannelAdapter performs the physical transport for one kind of channel.
// Implementations should report failures through SendStatus; the
// orchestrator guards against errors and panics anyway.
type ChannelAdapter interface {
	ID() types.AdapterID
	// AddressOf derives the channel-specific address of a known person
	// (email for email channels, mobile number for SMS).
	AddressOf(p *types.Person) string
	Send(ctx context.Context, req SendRequest) (SendStatus, error)
}

// SendRequest is everything an adapter needs for one attempt.
type SendRequest struct {
	Sender      Participant
	Receiver    Participant
	FromAddress string
	ToAddress   string
	// Format is the body format of the channel that carries the message.
	Format      types.ContentFormat
	Message     *types.Message
	Attachments []Attachment
}

// SendStatus is the adapter-reported outcome.
type SendStatus struct {
	Success bool
	Message string
	// ProviderID is the transport's reference for the sent message, if any.
	ProviderID string
}

// Attachment is an attachment stream ready to hand to an adapter. The
// orchestrator closes Content after the attempt.
type Attachment struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.ReadCloser
}

// AdapterRegistry maps stable adapter identifiers to adapters.
type AdapterRegistry struct {
	adapters map[types.AdapterID]ChannelAdapter
}

// NewAdapterRegistry registers every adapter given. It panics on a duplicate
// identifier, which is a wiring bug.
func NewAdapterRegistry(adapters ...ChannelAdapter) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[types.AdapterID]ChannelAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *AdapterRegistry) Register(a ChannelAdapter) {
	id := a.ID()
	if _, dup := r.adapters[id]; dup {
		panic(fmt.Sprintf("core: adapter %q registered twice", id))
	}
	r.adapters[id] = a
}

// Get returns the adapter for id or a sender_not_found error.
func (r *AdapterRegistry) Get(id types.AdapterID, channelName string) (ChannelAdapter, error) {
	if a, ok := r.adapters[id]; ok {
		return a, nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeSenderNotFound,
		fmt.Sprintf("Sender not found for channel %s", channelName), nil,
		map[string]any{"adapter_id": string(id)})
}

// IDs lists the registered identifiers in sorted order.
func (r *AdapterRegistry) IDs() []types.AdapterID {
	out := make([]types.AdapterID, 0, len(r.adapters))
	for id := range r.adapters {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
