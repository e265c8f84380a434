// Package cache fronts the catalog (notification types, channels, templates,
// routes) with two tiers: an in-process go-cache map and a shared redis
// tier. Both are best-effort; a redis outage degrades to database reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"courier/internal/types"
)

const keyPrefix = "catalog"

// ErrMiss is returned by a RemoteStore when the key is absent.
var ErrMiss = errors.New("cache: miss")

// RemoteStore is the shared tier. RedisStore implements it.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var _ types.CatalogReader = (*CatalogCache)(nil)

// CatalogCache implements types.CatalogReader over a source reader
// (normally db.CatalogRepository). Lookup errors from the source, including
// not-found, are never cached.
type CatalogCache struct {
	source    types.CatalogReader
	local     *gocache.Cache
	remote    RemoteStore
	remoteTTL time.Duration
	logger    types.Logger
}

// Options tunes the tiers. A nil Remote disables the shared tier.
type Options struct {
	Remote    RemoteStore
	LocalTTL  time.Duration
	RemoteTTL time.Duration
	Logger    types.Logger
}

func NewCatalogCache(source types.CatalogReader, opts Options) *CatalogCache {
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = 30 * time.Second
	}
	if opts.RemoteTTL <= 0 {
		opts.RemoteTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = types.NopLogger{}
	}
	return &CatalogCache{
		source:    source,
		local:     gocache.New(opts.LocalTTL, 2*opts.LocalTTL),
		remote:    opts.Remote,
		remoteTTL: opts.RemoteTTL,
		logger:    opts.Logger,
	}
}

func (c *CatalogCache) NotificationType(ctx context.Context, id string) (*types.NotificationType, error) {
	return lookup(ctx, c, fmt.Sprintf("%s:type:%s", keyPrefix, id), func() (*types.NotificationType, error) {
		return c.source.NotificationType(ctx, id)
	})
}

func (c *CatalogCache) Channel(ctx context.Context, id string) (*types.ChannelConfig, error) {
	return lookup(ctx, c, fmt.Sprintf("%s:channel:%s", keyPrefix, id), func() (*types.ChannelConfig, error) {
		return c.source.Channel(ctx, id)
	})
}

func (c *CatalogCache) Template(ctx context.Context, typeID string, format types.ContentFormat) (*types.Template, error) {
	return lookup(ctx, c, fmt.Sprintf("%s:template:%s:%s", keyPrefix, typeID, format), func() (*types.Template, error) {
		return c.source.Template(ctx, typeID, format)
	})
}

func (c *CatalogCache) RoutesFor(ctx context.Context, typeID string, priority types.Priority) ([]string, error) {
	return lookup(ctx, c, fmt.Sprintf("%s:routes:%s:%d", keyPrefix, typeID, int(priority)), func() ([]string, error) {
		return c.source.RoutesFor(ctx, typeID, priority)
	})
}

// FlushLocal drops the in-process tier.
func (c *CatalogCache) FlushLocal() {
	c.local.Flush()
}

func lookup[T any](ctx context.Context, c *CatalogCache, key string, load func() (T, error)) (T, error) {
	if v, ok := c.local.Get(key); ok {
		return v.(T), nil
	}

	if c.remote != nil {
		raw, err := c.remote.Get(ctx, key)
		switch {
		case err == nil:
			var v T
			uerr := json.Unmarshal(raw, &v)
			if uerr == nil {
				c.local.SetDefault(key, v)
				return v, nil
			}
			c.logger.Warn("discarding undecodable cache entry", "key", key, "error", uerr)
		case !errors.Is(err, ErrMiss):
			c.logger.Warn("shared catalog cache unavailable", "key", key, "error", err)
		}
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	c.local.SetDefault(key, v)
	if c.remote != nil {
		if raw, merr := json.Marshal(v); merr == nil {
			if serr := c.remote.Set(ctx, key, raw, c.remoteTTL); serr != nil {
				c.logger.Warn("failed to populate shared catalog cache", "key", key, "error", serr)
			}
		}
	}
	return v, nil
}
