// Package leaderboard turns the trade ledger into ranked, persisted
// leaderboard rows across the four rolling periods, and exposes the HTTP
// surface that triggers and serves them.
//
// A run walks COLLECT → COMPUTE → RANK → PERSIST for each period, then
// sweeps rows past the retention horizon once. Periods share no mutable
// state, so they run concurrently in a bounded group; each period's PERSIST
// is transactional in the store. One user's bad data never aborts a run:
// per-user failures are isolated and reported in the run summary.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/traderhub/rank-engine/internal/metrics"
	"github.com/traderhub/rank-engine/internal/model"
	"github.com/traderhub/rank-engine/internal/pnl"
	"github.com/traderhub/rank-engine/internal/store"
)

const (
	// JobName identifies this batch in run summaries and logs.
	JobName = "leaderboard-update"

	// idempotencyWindow is how far back a run deletes this period's rows
	// before inserting its own, so a near-simultaneous duplicate trigger
	// replaces instead of doubling. The store serializes overlapping
	// replacements per period.
	idempotencyWindow = 5 * time.Minute

	// maxConcurrentPeriods bounds the period worker group.
	maxConcurrentPeriods = 2
)

// DefaultRetention is how long leaderboard rows are kept before the sweep
// removes them.
const DefaultRetention = 30 * 24 * time.Hour

// UserFailure records one isolated per-user compute failure.
type UserFailure struct {
	OwnerID string `json:"ownerId"`
	Error   string `json:"error"`
}

// PeriodResult summarizes one period's pass.
type PeriodResult struct {
	Period         model.Period  `json:"period"`
	UsersProcessed int           `json:"usersProcessed"`
	EntriesCreated int           `json:"entriesCreated"`
	Failures       []UserFailure `json:"failures,omitempty"`
}

// RunSummary is the aggregate outcome of one batch run.
type RunSummary struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	RunID            string         `json:"runId"`
	Results          []PeriodResult `json:"results"`
	CleanedUpEntries int64          `json:"cleanedUpEntries"`
	Timestamp        time.Time      `json:"timestamp"`
	JobName          string         `json:"jobName"`
}

// Builder computes and persists the leaderboard. It holds no connection
// state; all persistence goes through the injected Store.
type Builder struct {
	store          store.Store
	initialCapital decimal.Decimal
	retention      time.Duration
	hub            *WSHub // optional, may be nil
	now            func() time.Time
}

// NewBuilder creates a Builder. Zero initialCapital falls back to the
// 100000 default; zero retention falls back to DefaultRetention. Pass nil
// for hub if WebSocket notifications are not needed.
func NewBuilder(st store.Store, initialCapital decimal.Decimal, retention time.Duration, hub *WSHub) *Builder {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = decimal.NewFromInt(100000)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Builder{
		store:          st,
		initialCapital: initialCapital,
		retention:      retention,
		hub:            hub,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full batch: every period, then the retention sweep.
// Per-user failures are collected, not fatal; a period-level store failure
// aborts the run.
func (b *Builder) Run(ctx context.Context) (RunSummary, error) {
	started := b.now()
	runID := uuid.New().String()
	summary := RunSummary{
		RunID:     runID,
		Timestamp: started,
		JobName:   JobName,
		Results:   make([]PeriodResult, len(model.Periods)),
	}

	slog.Info("leaderboard run started", "run_id", runID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPeriods)

	for i, period := range model.Periods {
		i, period := i, period
		g.Go(func() error {
			result, err := b.buildPeriod(gctx, runID, period, started)
			if err != nil {
				return fmt.Errorf("period %s: %w", period, err)
			}
			summary.Results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		summary.Message = err.Error()
		return summary, err
	}

	swept, err := b.store.SweepEntriesBefore(ctx, started.Add(-b.retention))
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		summary.Message = err.Error()
		return summary, fmt.Errorf("retention sweep: %w", err)
	}
	summary.CleanedUpEntries = swept
	metrics.SweptEntries.Add(float64(swept))

	summary.Success = true
	summary.Message = "leaderboard updated"
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())

	slog.Info("leaderboard run finished",
		"run_id", runID,
		"swept", swept,
		"duration", time.Since(started).String(),
	)
	return summary, nil
}

// buildPeriod runs COLLECT → COMPUTE → RANK → PERSIST for one period.
func (b *Builder) buildPeriod(ctx context.Context, runID string, period model.Period, now time.Time) (PeriodResult, error) {
	result := PeriodResult{Period: period}
	windowStart := period.Start(now)

	// COLLECT: only users with at least one trade in the window are ranked.
	owners, err := b.store.ListActiveTraders(ctx, windowStart)
	if err != nil {
		return result, fmt.Errorf("list active traders: %w", err)
	}

	// COMPUTE: each user in isolation; failures are collected, not fatal.
	var entries []model.LeaderboardEntry
	var stats []model.TradingStats
	for _, owner := range owners {
		entry, st, err := b.computeUser(ctx, owner, windowStart, now)
		if err != nil {
			slog.Warn("user compute failed",
				"run_id", runID, "period", string(period), "owner", owner, "err", err)
			metrics.UserFailures.WithLabelValues(string(period)).Inc()
			result.Failures = append(result.Failures, UserFailure{OwnerID: owner, Error: err.Error()})
			continue
		}
		entries = append(entries, entry)
		stats = append(stats, st)
	}
	result.UsersProcessed = len(entries)

	// RANK: descending by total return; ties get distinct sequential ranks
	// in input order (owners arrive sorted, so re-runs are deterministic).
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalReturn.GreaterThan(entries[j].TotalReturn)
	})
	for i := range entries {
		entries[i].ID = uuid.New().String()
		entries[i].RunID = runID
		entries[i].Period = period
		entries[i].Rank = i + 1
		entries[i].CalculatedAt = now
	}

	// PERSIST: replace any rows from the idempotency window, all-or-nothing.
	if err := b.store.ReplaceEntries(ctx, period, now.Add(-idempotencyWindow), entries); err != nil {
		return result, fmt.Errorf("persist entries: %w", err)
	}
	result.EntriesCreated = len(entries)
	metrics.EntriesCreated.WithLabelValues(string(period)).Add(float64(len(entries)))

	// The stats snapshot is the cumulative picture, so only the ALL_TIME
	// pass writes it; shorter windows would shrink the totals.
	if period == model.PeriodAllTime {
		for _, st := range stats {
			if err := b.store.UpsertStats(ctx, st); err != nil {
				return result, fmt.Errorf("upsert stats for %s: %w", st.OwnerID, err)
			}
		}
	}

	slog.Info("period persisted",
		"run_id", runID,
		"period", string(period),
		"users", result.UsersProcessed,
		"failures", len(result.Failures),
	)

	if b.hub != nil {
		b.hub.Broadcast(WSMessage{
			Type:         "leaderboard_updated",
			Period:       string(period),
			Entries:      len(entries),
			CalculatedAt: now.Format(time.RFC3339),
		})
	}
	return result, nil
}

// computeUser produces one user's leaderboard row and stats snapshot for a
// window. Pure function of that user's own data; safe to run concurrently
// with other users.
func (b *Builder) computeUser(ctx context.Context, ownerID string, windowStart, now time.Time) (model.LeaderboardEntry, model.TradingStats, error) {
	var entry model.LeaderboardEntry
	var st model.TradingStats

	trades, err := b.store.TradesByOwner(ctx, ownerID, windowStart)
	if err != nil {
		return entry, st, fmt.Errorf("load trades: %w", err)
	}
	if len(trades) == 0 {
		// COLLECT should prevent this; guard against a racing sweep anyway.
		return entry, st, fmt.Errorf("no trades in window")
	}
	for _, t := range trades {
		if t.Quantity.LessThanOrEqual(decimal.Zero) || t.Price.LessThanOrEqual(decimal.Zero) {
			return entry, st, fmt.Errorf("malformed trade %s: non-positive quantity or price", t.ID)
		}
	}

	attr := pnl.Attribute(trades)

	holdings, err := b.store.HoldingsByOwner(ctx, ownerID)
	if err != nil {
		return entry, st, fmt.Errorf("load holdings: %w", err)
	}
	cash, err := b.store.CashBalance(ctx, ownerID)
	if err != nil {
		return entry, st, fmt.Errorf("load cash: %w", err)
	}

	// Portfolio value marks holdings at their stored average price; the
	// engine consumes no live price feed.
	portfolioValue := cash
	for _, h := range holdings {
		portfolioValue = portfolioValue.Add(h.Quantity.Mul(h.AveragePrice))
	}
	percentReturn := portfolioValue.Sub(b.initialCapital).
		Div(b.initialCapital).
		Mul(decimal.NewFromInt(100)).
		Round(2)

	entry = model.LeaderboardEntry{
		OwnerID:          ownerID,
		TotalReturn:      percentReturn,
		WinRate:          attr.WinRate(),
		TotalTrades:      attr.TotalTrades,
		ProfitableTrades: attr.ProfitableTrades,
		PortfolioValue:   portfolioValue.Round(2),
	}
	st = model.TradingStats{
		OwnerID:          ownerID,
		TotalTrades:      attr.TotalTrades,
		ProfitableTrades: attr.ProfitableTrades,
		TotalProfit:      attr.TotalProfit,
		TotalLoss:        attr.TotalLoss,
		UpdatedAt:        now,
	}
	return entry, st, nil
}
