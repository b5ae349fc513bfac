// Package store defines the persistence interface for the ranking engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache over the UI-facing leaderboard query), and in-memory (for testing).
//
// The engine holds no connection state of its own; a Store is injected into
// the leaderboard builder, so tests run against the in-memory fake.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
)

// Store is the persistence interface. Trades, holdings, and cash are owned
// by the external execution system and are read-only here; only leaderboard
// rows and trading-stats snapshots are written.
type Store interface {
	// --- Ledger reads (read-only upstream data) ---

	// ListActiveTraders returns the IDs of every user with at least one
	// trade at or after since.
	ListActiveTraders(ctx context.Context, since time.Time) ([]string, error)

	// TradesByOwner returns a user's trades at or after since, in
	// chronological order.
	TradesByOwner(ctx context.Context, ownerID string, since time.Time) ([]model.Trade, error)

	// HoldingsByOwner returns a user's current holdings.
	HoldingsByOwner(ctx context.Context, ownerID string) ([]model.Holding, error)

	// CashBalance returns a user's cash balance.
	CashBalance(ctx context.Context, ownerID string) (decimal.Decimal, error)

	// --- Leaderboard persistence ---

	// ReplaceEntries atomically deletes this period's rows calculated at or
	// after replaceSince (the idempotency guard against near-simultaneous
	// runs) and inserts the new batch. All-or-nothing per period.
	ReplaceEntries(ctx context.Context, period model.Period, replaceSince time.Time, entries []model.LeaderboardEntry) error

	// UpsertStats overwrites a user's cumulative trading-stats snapshot.
	UpsertStats(ctx context.Context, stats model.TradingStats) error

	// SweepEntriesBefore deletes leaderboard rows calculated before cutoff
	// and reports how many were removed.
	SweepEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// TopEntries returns a period's current leaderboard, best rank first.
	TopEntries(ctx context.Context, period model.Period, limit int) ([]model.LeaderboardEntry, error)
}
