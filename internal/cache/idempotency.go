package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/types"
)

const idempotencyPrefix = "idem:"

// reservationTTL bounds how long a crashed request can hold a key.
const reservationTTL = 2 * time.Minute

// IdempotencyClient is the subset of redis commands IdempotencyStore uses.
// redis.UniversalClient satisfies it.
type IdempotencyClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyStore keeps Idempotency-Key outcomes in redis. A reservation
// is written with SETNX, so concurrent duplicates see it immediately.
type IdempotencyStore struct {
	rdb IdempotencyClient
	ttl time.Duration
}

func NewIdempotencyStore(rdb IdempotencyClient, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*types.IdempotencyRecord, error) {
	raw, err := s.rdb.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalCache, "failed to read idempotency key", err)
	}
	var rec types.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCache, "corrupt idempotency record", err)
	}
	return &rec, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, idempotencyPrefix+key, `{"status":0}`, reservationTTL).Result()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalCache, "failed to reserve idempotency key", err)
	}
	return ok, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, status int, body []byte) error {
	raw, err := json.Marshal(types.IdempotencyRecord{Status: status, Body: body})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, idempotencyPrefix+key, raw, s.ttl).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to store idempotency record", err)
	}
	return nil
}

// Release forgets key so the request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to release idempotency key", err)
	}
	return nil
}
