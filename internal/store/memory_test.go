package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
	"github.com/traderhub/rank-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func entry(id, runID, owner string, rank int, at time.Time) model.LeaderboardEntry {
	return model.LeaderboardEntry{
		ID: id, RunID: runID, OwnerID: owner,
		Period: model.PeriodDaily, Rank: rank,
		TotalReturn: d(1), WinRate: d(50), PortfolioValue: d(100000),
		CalculatedAt: at,
	}
}

func TestMemoryStore_ListActiveTraders(t *testing.T) {
	ms := store.NewMemoryStore()
	now := time.Now().UTC()

	ms.SeedTrade(model.Trade{OwnerID: "bob", Ticker: "A", Side: model.SideBuy,
		Quantity: d(1), Price: d(10), TradedAt: now.Add(-time.Hour)})
	ms.SeedTrade(model.Trade{OwnerID: "alice", Ticker: "A", Side: model.SideBuy,
		Quantity: d(1), Price: d(10), TradedAt: now.Add(-time.Hour)})
	ms.SeedTrade(model.Trade{OwnerID: "carol", Ticker: "A", Side: model.SideBuy,
		Quantity: d(1), Price: d(10), TradedAt: now.AddDate(0, 0, -3)})

	owners, err := ms.ListActiveTraders(context.Background(), now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// carol is outside the window; order is deterministic.
	if len(owners) != 2 || owners[0] != "alice" || owners[1] != "bob" {
		t.Errorf("expected [alice bob], got %v", owners)
	}
}

func TestMemoryStore_ReplaceEntriesGuard(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// First run.
	if err := ms.ReplaceEntries(ctx, model.PeriodDaily, now.Add(-5*time.Minute),
		[]model.LeaderboardEntry{entry("e1", "run1", "alice", 1, now)}); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	// Second run two minutes later replaces the first run's rows.
	later := now.Add(2 * time.Minute)
	if err := ms.ReplaceEntries(ctx, model.PeriodDaily, later.Add(-5*time.Minute),
		[]model.LeaderboardEntry{entry("e2", "run2", "alice", 1, later)}); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	if got := ms.EntryCount(model.PeriodDaily); got != 1 {
		t.Errorf("expected 1 row after replacement, got %d", got)
	}

	top, _ := ms.TopEntries(ctx, model.PeriodDaily, 10)
	if len(top) != 1 || top[0].RunID != "run2" {
		t.Errorf("expected run2 to win, got %+v", top)
	}
}

func TestMemoryStore_TopEntriesReturnsLatestRunOnly(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// An older run outside the guard window survives replacement...
	older := now.Add(-time.Hour)
	ms.ReplaceEntries(ctx, model.PeriodDaily, older.Add(-5*time.Minute),
		[]model.LeaderboardEntry{entry("e1", "run1", "alice", 1, older)})
	ms.ReplaceEntries(ctx, model.PeriodDaily, now.Add(-5*time.Minute),
		[]model.LeaderboardEntry{
			entry("e2", "run2", "bob", 1, now),
			entry("e3", "run2", "alice", 2, now),
		})

	// ...but reads only ever see the newest batch, rank-ordered.
	top, err := ms.TopEntries(ctx, model.PeriodDaily, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 rows from latest run, got %d", len(top))
	}
	if top[0].OwnerID != "bob" || top[1].OwnerID != "alice" {
		t.Errorf("expected [bob alice], got [%s %s]", top[0].OwnerID, top[1].OwnerID)
	}
}

func TestMemoryStore_SweepEntriesBefore(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	ms.ReplaceEntries(ctx, model.PeriodDaily, now.AddDate(0, 0, -40),
		[]model.LeaderboardEntry{
			entry("old", "run0", "alice", 1, now.AddDate(0, 0, -31)),
			entry("new", "run1", "alice", 1, now),
		})

	deleted, err := ms.SweepEntriesBefore(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}
	if got := ms.EntryCount(model.PeriodDaily); got != 1 {
		t.Errorf("expected 1 surviving row, got %d", got)
	}
}

func TestMemoryStore_CashBalanceMissing(t *testing.T) {
	ms := store.NewMemoryStore()

	if _, err := ms.CashBalance(context.Background(), "nobody"); err == nil {
		t.Error("expected error for missing cash balance")
	}
}

func TestMemoryStore_UpsertStatsOverwrites(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	ms.UpsertStats(ctx, model.TradingStats{OwnerID: "alice", TotalTrades: 1,
		TotalProfit: d(10), TotalLoss: d(0)})
	ms.UpsertStats(ctx, model.TradingStats{OwnerID: "alice", TotalTrades: 5,
		TotalProfit: d(80), TotalLoss: d(20)})

	st, ok := ms.Stats("alice")
	if !ok {
		t.Fatal("expected stats for alice")
	}
	if st.TotalTrades != 5 || !st.TotalProfit.Equal(d(80)) {
		t.Errorf("upsert should overwrite, got %+v", st)
	}
}
