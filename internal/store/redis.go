package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjournal/journal-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and invalidate the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Insert(ctx context.Context, t *model.Trade) (*model.Trade, error) {
	stored, err := s.primary.Insert(ctx, t)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.cacheTrade(ctx, stored)
	return stored, nil
}

func (s *CachedStore) Replace(ctx context.Context, id int64, t *model.Trade) (*model.Trade, error) {
	stored, err := s.primary.Replace(ctx, id, t)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tradeKey(id))
	return stored, nil
}

func (s *CachedStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if err := s.primary.SoftDelete(ctx, id, at); err != nil {
		return err
	}
	s.invalidate(ctx, tradeKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Get(ctx context.Context, id int64) (*model.Trade, error) {
	data, err := s.rdb.Get(ctx, tradeKey(id)).Bytes()
	if err == nil {
		var t model.Trade
		if json.Unmarshal(data, &t) == nil {
			return &t, nil
		}
	}

	// Cache miss: read from primary.
	t, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheTrade(ctx, t)
	return t, nil
}

func (s *CachedStore) List(ctx context.Context) ([]model.Trade, error) {
	data, err := s.rdb.Get(ctx, activeListKey).Bytes()
	if err == nil {
		var trades []model.Trade
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	trades, err := s.primary.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(trades); err == nil {
		s.rdb.Set(ctx, activeListKey, data, s.ttl)
	}
	return trades, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheTrade(ctx context.Context, t *model.Trade) {
	if data, err := json.Marshal(t); err == nil {
		s.rdb.Set(ctx, tradeKey(t.ID), data, s.ttl)
	}
}

// invalidate drops the active list plus any extra keys. Failures are
// logged and otherwise ignored.
func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	keys = append(keys, activeListKey)
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache invalidation failed", "keys", keys, "err", err)
	}
}

const activeListKey = "trades:active"

func tradeKey(id int64) string { return fmt.Sprintf("trade:%d", id) }
