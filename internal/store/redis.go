package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache over the UI-facing leaderboard query. Writes go to the primary store
// and invalidate the affected period; ledger reads pass straight through
// since they only run inside batch jobs.
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

// --- Cached read ---

func (s *CachedStore) TopEntries(ctx context.Context, period model.Period, limit int) ([]model.LeaderboardEntry, error) {
	key := leaderboardKey(period, limit)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var entries []model.LeaderboardEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	// Cache miss: read from primary.
	entries, err := s.primary.TopEntries(ctx, period, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return entries, nil
}

// --- Writes (to primary, invalidate cache) ---

func (s *CachedStore) ReplaceEntries(ctx context.Context, period model.Period, replaceSince time.Time, entries []model.LeaderboardEntry) error {
	if err := s.primary.ReplaceEntries(ctx, period, replaceSince, entries); err != nil {
		return err
	}
	s.invalidatePeriod(ctx, period)
	return nil
}

func (s *CachedStore) SweepEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.primary.SweepEntriesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		for _, p := range model.Periods {
			s.invalidatePeriod(ctx, p)
		}
	}
	return deleted, nil
}

func (s *CachedStore) UpsertStats(ctx context.Context, st model.TradingStats) error {
	return s.primary.UpsertStats(ctx, st)
}

// --- Passthrough ledger reads ---

func (s *CachedStore) ListActiveTraders(ctx context.Context, since time.Time) ([]string, error) {
	return s.primary.ListActiveTraders(ctx, since)
}

func (s *CachedStore) TradesByOwner(ctx context.Context, ownerID string, since time.Time) ([]model.Trade, error) {
	return s.primary.TradesByOwner(ctx, ownerID, since)
}

func (s *CachedStore) HoldingsByOwner(ctx context.Context, ownerID string) ([]model.Holding, error) {
	return s.primary.HoldingsByOwner(ctx, ownerID)
}

func (s *CachedStore) CashBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	return s.primary.CashBalance(ctx, ownerID)
}

// --- Cache helpers ---

// invalidatePeriod drops every cached limit variant for a period.
func (s *CachedStore) invalidatePeriod(ctx context.Context, period model.Period) {
	iter := s.rdb.Scan(ctx, 0, fmt.Sprintf("leaderboard:%s:*", period), 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
}

func leaderboardKey(period model.Period, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", period, limit)
}
