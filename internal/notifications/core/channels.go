package core

import (
	"context"
	"fmt"

	"courier/internal/types"
)

// ChannelResolver turns the externally configured routes for a
// (type, priority) pair into the ordered list of channels to fan out to.
// Routing policy lives in the catalog; the resolver only keeps the order,
// drops duplicates and disabled channels, and skips channels on which a
// known receiver has no address.
type ChannelResolver struct {
	catalog  types.CatalogReader
	adapters *AdapterRegistry
	logger   types.Logger
}

func NewChannelResolver(catalog types.CatalogReader, adapters *AdapterRegistry, logger types.Logger) *ChannelResolver {
	return &ChannelResolver{catalog: catalog, adapters: adapters, logger: logger}
}

func (r *ChannelResolver) Resolve(ctx context.Context, nt *types.NotificationType, receiver Participant, priority types.Priority) ([]*types.ChannelConfig, error) {
	ids, err := r.catalog.RoutesFor(ctx, nt.ID, priority)
	if err != nil {
		return nil, fmt.Errorf("resolve channels for %s: %w", nt.ID, err)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]*types.ChannelConfig, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		ch, err := r.catalog.Channel(ctx, id)
		if err != nil {
			if types.CodeOf(err) == types.ErrCodeNotFoundChannel {
				r.logger.Warn("route references unknown channel", "type_id", nt.ID, "channel_id", id)
				continue
			}
			return nil, fmt.Errorf("load channel %s: %w", id, err)
		}
		if ch.Disabled {
			continue
		}
		if !r.reachable(receiver, ch) {
			r.logger.Info("receiver has no address on channel, skipping",
				"type_id", nt.ID,
				"channel_id", ch.ID,
				"person_id", receiver.PersonID(),
			)
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// reachable is false only when a known person has no address for the
// channel's adapter. Raw addresses and unknown adapters pass through; the
// latter fail loudly during fan-out.
func (r *ChannelResolver) reachable(receiver Participant, ch *types.ChannelConfig) bool {
	pp, ok := receiver.(PersonParticipant)
	if !ok {
		return true
	}
	a, err := r.adapters.Get(ch.AdapterID, ch.Name)
	if err != nil {
		return true
	}
	return pp.AddressFor(a) != ""
}
