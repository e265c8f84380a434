package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/types"
)

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (s *countingSource) hit(k string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[k]++
}

func (s *countingSource) NotificationType(_ context.Context, id string) (*types.NotificationType, error) {
	s.hit("type:" + id)
	if s.err != nil {
		return nil, s.err
	}
	return &types.NotificationType{ID: id, Name: "Invoice", AllowAttachments: true}, nil
}

func (s *countingSource) Channel(_ context.Context, id string) (*types.ChannelConfig, error) {
	s.hit("channel:" + id)
	if s.err != nil {
		return nil, s.err
	}
	return &types.ChannelConfig{ID: id, Name: "Email", AdapterID: types.AdapterEmailSES}, nil
}

func (s *countingSource) Template(_ context.Context, typeID string, format types.ContentFormat) (*types.Template, error) {
	s.hit("template:" + typeID)
	return &types.Template{ID: "t-1", TypeID: typeID, Format: format}, nil
}

func (s *countingSource) RoutesFor(_ context.Context, typeID string, _ types.Priority) ([]string, error) {
	s.hit("routes:" + typeID)
	return []string{"email", "sms"}, nil
}

type memRemote struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func newMemRemote() *memRemote { return &memRemote{data: map[string][]byte{}} }

func (m *memRemote) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *memRemote) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	m.data[key] = value
	return nil
}

func TestCatalogCache_LocalTierServesRepeatReads(t *testing.T) {
	src := &countingSource{}
	c := NewCatalogCache(src, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		nt, err := c.NotificationType(ctx, "invoice")
		require.NoError(t, err)
		assert.Equal(t, "Invoice", nt.Name)
	}
	assert.Equal(t, 1, src.calls["type:invoice"])
}

func TestCatalogCache_SharedTierPopulatedAndRead(t *testing.T) {
	src := &countingSource{}
	remote := newMemRemote()
	ctx := context.Background()

	first := NewCatalogCache(src, Options{Remote: remote})
	_, err := first.RoutesFor(ctx, "invoice", types.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.sets)

	// A second process with a cold local tier reads from redis.
	second := NewCatalogCache(src, Options{Remote: remote})
	routes, err := second.RoutesFor(ctx, "invoice", types.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "sms"}, routes)
	assert.Equal(t, 1, src.calls["routes:invoice"])
}

func TestCatalogCache_RemoteOutageFallsBackToSource(t *testing.T) {
	src := &countingSource{}
	remote := newMemRemote()
	remote.getErr = errors.New("connection refused")

	c := NewCatalogCache(src, Options{Remote: remote})
	ch, err := c.Channel(context.Background(), "email")
	require.NoError(t, err)
	assert.Equal(t, types.AdapterEmailSES, ch.AdapterID)
	assert.Equal(t, 1, src.calls["channel:email"])
}

func TestCatalogCache_ErrorsAreNotCached(t *testing.T) {
	src := &countingSource{err: types.NewAppError(types.ErrCodeNotFoundNotificationType, "notification type not found", nil)}
	c := NewCatalogCache(src, Options{Remote: newMemRemote()})
	ctx := context.Background()

	_, err := c.NotificationType(ctx, "nope")
	assert.Equal(t, types.ErrCodeNotFoundNotificationType, types.CodeOf(err))
	_, err = c.NotificationType(ctx, "nope")
	require.Error(t, err)
	assert.Equal(t, 2, src.calls["type:nope"])
}

func TestCatalogCache_UndecodableRemoteEntryIsIgnored(t *testing.T) {
	src := &countingSource{}
	remote := newMemRemote()
	remote.data["catalog:template:invoice:html"] = []byte("{not json")

	c := NewCatalogCache(src, Options{Remote: remote})
	tmpl, err := c.Template(context.Background(), "invoice", types.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "t-1", tmpl.ID)

	var stored types.Template
	require.NoError(t, json.Unmarshal(remote.data["catalog:template:invoice:html"], &stored))
	assert.Equal(t, types.FormatHTML, stored.Format)
}

func TestCatalogCache_FlushLocal(t *testing.T) {
	src := &countingSource{}
	c := NewCatalogCache(src, Options{})
	ctx := context.Background()

	_, _ = c.Channel(ctx, "sms")
	c.FlushLocal()
	_, _ = c.Channel(ctx, "sms")
	assert.Equal(t, 2, src.calls["channel:sms"])
}
