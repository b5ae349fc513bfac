package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	trades   []model.Trade
	holdings []model.Holding
	cash     map[string]decimal.Decimal
	entries  []model.LeaderboardEntry
	stats    map[string]model.TradingStats
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cash:  make(map[string]decimal.Decimal),
		stats: make(map[string]model.TradingStats),
	}
}

// --- Seeding helpers (upstream data is read-only for the engine itself) ---

// SeedTrade appends an immutable trade record.
func (s *MemoryStore) SeedTrade(t model.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
}

// SeedHolding sets a user's holding for a ticker.
func (s *MemoryStore) SeedHolding(h model.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings = append(s.holdings, h)
}

// SeedCash sets a user's cash balance.
func (s *MemoryStore) SeedCash(ownerID string, cash decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash[ownerID] = cash
}

// Stats returns the current stats snapshot for a user, if any.
func (s *MemoryStore) Stats(ownerID string) (model.TradingStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[ownerID]
	return st, ok
}

// EntryCount returns how many leaderboard rows exist for a period.
func (s *MemoryStore) EntryCount(period model.Period) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Period == period {
			n++
		}
	}
	return n
}

// --- Store implementation ---

func (s *MemoryStore) ListActiveTraders(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var owners []string
	for _, t := range s.trades {
		if t.TradedAt.Before(since) {
			continue
		}
		if _, ok := seen[t.OwnerID]; !ok {
			seen[t.OwnerID] = struct{}{}
			owners = append(owners, t.OwnerID)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *MemoryStore) TradesByOwner(_ context.Context, ownerID string, since time.Time) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.trades {
		if t.OwnerID == ownerID && !t.TradedAt.Before(since) {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TradedAt.Before(result[j].TradedAt)
	})
	return result, nil
}

func (s *MemoryStore) HoldingsByOwner(_ context.Context, ownerID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Holding
	for _, h := range s.holdings {
		if h.OwnerID == ownerID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (s *MemoryStore) CashBalance(_ context.Context, ownerID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cash, ok := s.cash[ownerID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no cash balance for %s", ownerID)
	}
	return cash, nil
}

func (s *MemoryStore) ReplaceEntries(_ context.Context, period model.Period, replaceSince time.Time, entries []model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Period == period && !e.CalculatedAt.Before(replaceSince) {
			continue // superseded by this run
		}
		kept = append(kept, e)
	}
	s.entries = append(kept, entries...)
	return nil
}

func (s *MemoryStore) UpsertStats(_ context.Context, st model.TradingStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[st.OwnerID] = st
	return nil
}

func (s *MemoryStore) SweepEntriesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.CalculatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

func (s *MemoryStore) TopEntries(_ context.Context, period model.Period, limit int) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Latest batch wins: find the most recent run for this period.
	var latestRun string
	var latestAt time.Time
	for _, e := range s.entries {
		if e.Period == period && e.CalculatedAt.After(latestAt) {
			latestAt = e.CalculatedAt
			latestRun = e.RunID
		}
	}

	var result []model.LeaderboardEntry
	for _, e := range s.entries {
		if e.Period == period && e.RunID == latestRun {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Rank < result[j].Rank })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
