package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListActiveTraders(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT owner_id FROM trades WHERE traded_at >= $1 ORDER BY owner_id`, since)
	if err != nil {
		return nil, fmt.Errorf("list active traders: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (s *PostgresStore) TradesByOwner(ctx context.Context, ownerID string, since time.Time) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, ticker, side,
		        quantity::TEXT, price::TEXT, traded_at
		 FROM trades
		 WHERE owner_id = $1 AND traded_at >= $2
		 ORDER BY traded_at`, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("trades for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var side, qtyS, priceS string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Ticker, &side, &qtyS, &priceS, &t.TradedAt); err != nil {
			return nil, err
		}
		if t.Side, err = model.ParseSide(side); err != nil {
			return nil, err
		}
		t.Quantity, _ = decimal.NewFromString(qtyS)
		t.Price, _ = decimal.NewFromString(priceS)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) HoldingsByOwner(ctx context.Context, ownerID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner_id, ticker, quantity::TEXT, average_price::TEXT
		 FROM holdings WHERE owner_id = $1 ORDER BY ticker`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("holdings for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var qtyS, avgS string
		if err := rows.Scan(&h.OwnerID, &h.Ticker, &qtyS, &avgS); err != nil {
			return nil, err
		}
		h.Quantity, _ = decimal.NewFromString(qtyS)
		h.AveragePrice, _ = decimal.NewFromString(avgS)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) CashBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var cashS string
	err := s.pool.QueryRow(ctx,
		`SELECT cash::TEXT FROM cash_balances WHERE owner_id = $1`, ownerID).Scan(&cashS)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cash balance for %s: %w", ownerID, err)
	}
	cash, _ := decimal.NewFromString(cashS)
	return cash, nil
}

// ReplaceEntries runs the idempotent delete-then-insert inside a single
// transaction guarded by a per-period advisory lock, so two overlapping runs
// for the same period serialize instead of racing on the guard window.
func (s *PostgresStore) ReplaceEntries(ctx context.Context, period model.Period, replaceSince time.Time, entries []model.LeaderboardEntry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("replace entries for %s: %w", period, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('leaderboard:' || $1::TEXT))`, string(period)); err != nil {
		return fmt.Errorf("advisory lock for %s: %w", period, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM leaderboard_entries WHERE period = $1 AND calculated_at >= $2`,
		string(period), replaceSince); err != nil {
		return fmt.Errorf("delete superseded rows for %s: %w", period, err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO leaderboard_entries
			   (id, run_id, owner_id, period, rank, total_return, win_rate,
			    total_trades, profitable_trades, portfolio_value, calculated_at)
			 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9, $10::NUMERIC, $11)`,
			e.ID, e.RunID, e.OwnerID, string(e.Period), e.Rank,
			e.TotalReturn.String(), e.WinRate.String(),
			e.TotalTrades, e.ProfitableTrades,
			e.PortfolioValue.String(), e.CalculatedAt); err != nil {
			return fmt.Errorf("insert leaderboard row for %s: %w", e.OwnerID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) UpsertStats(ctx context.Context, st model.TradingStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trading_stats
		   (owner_id, total_trades, profitable_trades, total_profit, total_loss, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   total_trades = EXCLUDED.total_trades,
		   profitable_trades = EXCLUDED.profitable_trades,
		   total_profit = EXCLUDED.total_profit,
		   total_loss = EXCLUDED.total_loss,
		   updated_at = EXCLUDED.updated_at`,
		st.OwnerID, st.TotalTrades, st.ProfitableTrades,
		st.TotalProfit.String(), st.TotalLoss.String(), st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert stats for %s: %w", st.OwnerID, err)
	}
	return nil
}

func (s *PostgresStore) SweepEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM leaderboard_entries WHERE calculated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep entries before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) TopEntries(ctx context.Context, period model.Period, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, owner_id, period, rank,
		        total_return::TEXT, win_rate::TEXT,
		        total_trades, profitable_trades,
		        portfolio_value::TEXT, calculated_at
		 FROM leaderboard_entries
		 WHERE period = $1 AND run_id = (
		   SELECT run_id FROM leaderboard_entries
		   WHERE period = $1 ORDER BY calculated_at DESC LIMIT 1
		 )
		 ORDER BY rank
		 LIMIT $2`, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("top entries for %s: %w", period, err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var periodS, retS, wrS, pvS string
		if err := rows.Scan(&e.ID, &e.RunID, &e.OwnerID, &periodS, &e.Rank,
			&retS, &wrS, &e.TotalTrades, &e.ProfitableTrades, &pvS, &e.CalculatedAt); err != nil {
			return nil, err
		}
		e.Period = model.Period(periodS)
		e.TotalReturn, _ = decimal.NewFromString(retS)
		e.WinRate, _ = decimal.NewFromString(wrS)
		e.PortfolioValue, _ = decimal.NewFromString(pvS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
