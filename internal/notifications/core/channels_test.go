package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/types"
)

func newResolverFixture() (*ChannelResolver, *fakeCatalog, *mockLogger) {
	catalog := newFakeCatalog()
	catalog.channels["email"] = &types.ChannelConfig{ID: "email", Name: "Email", AdapterID: "email.fake"}
	catalog.channels["sms"] = &types.ChannelConfig{ID: "sms", Name: "SMS", AdapterID: "sms.fake"}
	catalog.channels["fax"] = &types.ChannelConfig{ID: "fax", Name: "Fax", AdapterID: "fax.fake", Disabled: true}
	logger := &mockLogger{}
	return NewChannelResolver(catalog, NewAdapterRegistry(newEmailAdapter(), newSMSAdapter()), logger), catalog, logger
}

func TestChannelResolver_KeepsOrderAndDropsDuplicates(t *testing.T) {
	r, catalog, _ := newResolverFixture()
	catalog.routes["alert"] = []string{"sms", "email", "sms"}
	nt := &types.NotificationType{ID: "alert"}

	got, err := r.Resolve(context.Background(), nt, RawAddress("x"), types.PriorityHigh)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sms", got[0].ID)
	assert.Equal(t, "email", got[1].ID)
}

func TestChannelResolver_SkipsDisabledAndUnknownChannels(t *testing.T) {
	r, catalog, logger := newResolverFixture()
	catalog.routes["alert"] = []string{"fax", "pigeon", "email"}
	nt := &types.NotificationType{ID: "alert"}

	got, err := r.Resolve(context.Background(), nt, RawAddress("x"), types.PriorityLow)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "email", got[0].ID)
	assert.True(t, logger.has("warn:route references unknown channel"))
}

func TestChannelResolver_SkipsChannelsWithoutReceiverAddress(t *testing.T) {
	r, catalog, _ := newResolverFixture()
	catalog.routes["alert"] = []string{"email", "sms"}
	nt := &types.NotificationType{ID: "alert"}
	noPhone := PersonParticipant{Person: &types.Person{ID: "p1", Email: "p1@example.com"}}

	got, err := r.Resolve(context.Background(), nt, noPhone, types.PriorityNormal)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "email", got[0].ID)
}

func TestChannelResolver_EmptyRoutes(t *testing.T) {
	r, _, _ := newResolverFixture()
	got, err := r.Resolve(context.Background(), &types.NotificationType{ID: "quiet"}, RawAddress("x"), types.PriorityLow)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAdapterRegistry(t *testing.T) {
	email := newEmailAdapter()
	reg := NewAdapterRegistry(email, newSMSAdapter())

	got, err := reg.Get("email.fake", "Email")
	require.NoError(t, err)
	assert.Same(t, email, got)

	_, err = reg.Get("push.apns", "Push")
	assert.Equal(t, types.ErrCodeSenderNotFound, types.CodeOf(err))
	assert.Contains(t, err.Error(), "Sender not found for channel Push")

	assert.Equal(t, []types.AdapterID{"email.fake", "sms.fake"}, reg.IDs())
	assert.Panics(t, func() { reg.Register(newEmailAdapter()) })
}

func TestResolveParticipants(t *testing.T) {
	store := newMemStore()
	store.persons["p1"] = &types.Person{ID: "p1", Email: "p1@example.com"}
	persons := store.Persons()
	ctx := context.Background()

	t.Run("person wins over text", func(t *testing.T) {
		n := &types.Notification{FromPersonID: "p1", ToPersonID: "p1"}
		m := &types.Message{SenderText: "raw@x", RecipientText: "raw@y"}
		s, r, err := resolveParticipants(ctx, persons, n, m)
		require.NoError(t, err)
		assert.Equal(t, "p1", s.PersonID())
		assert.Equal(t, "p1@example.com", r.AddressFor(newEmailAdapter()))
	})

	t.Run("falls back to raw text", func(t *testing.T) {
		n := &types.Notification{}
		m := &types.Message{SenderText: "raw@x", RecipientText: "raw@y"}
		s, r, err := resolveParticipants(ctx, persons, n, m)
		require.NoError(t, err)
		assert.Equal(t, RawAddress("raw@x"), s)
		assert.Equal(t, "raw@y", r.AddressFor(newSMSAdapter()))
	})

	t.Run("missing sender is fatal", func(t *testing.T) {
		n := &types.Notification{ToPersonID: "p1"}
		m := &types.Message{ID: "m1", SenderText: "  "}
		_, _, err := resolveParticipants(ctx, persons, n, m)
		assert.Equal(t, types.ErrCodeParticipantUnresolved, types.CodeOf(err))
		assert.Contains(t, err.Error(), "sender")
	})
}
