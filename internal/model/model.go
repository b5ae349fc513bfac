// Package model defines the core domain types shared across the ranking engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade. Exactly two variants exist.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide validates a raw side string from upstream storage.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	}
	return "", fmt.Errorf("model: invalid trade side %q", s)
}

// Trade is an immutable record of a trade execution, written by the external
// execution system. Once created, these are never modified or deleted.
type Trade struct {
	ID       string          `json:"id" db:"id"`
	OwnerID  string          `json:"owner_id" db:"owner_id"`
	Ticker   string          `json:"ticker" db:"ticker"`
	Side     Side            `json:"side" db:"side"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"` // strictly positive
	Price    decimal.Decimal `json:"price" db:"price"`       // strictly positive
	TradedAt time.Time       `json:"traded_at" db:"traded_at"`
}

// Holding is the per-(owner, ticker) aggregate maintained by the external
// execution system. The engine reads it, never mutates it.
type Holding struct {
	OwnerID      string          `json:"owner_id" db:"owner_id"`
	Ticker       string          `json:"ticker" db:"ticker"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price" db:"average_price"`
}

// TradingStats is the cumulative per-user snapshot, overwritten on every
// leaderboard run. It is a current picture, not a time series.
type TradingStats struct {
	OwnerID          string          `json:"owner_id" db:"owner_id"`
	TotalTrades      int             `json:"total_trades" db:"total_trades"`
	ProfitableTrades int             `json:"profitable_trades" db:"profitable_trades"`
	TotalProfit      decimal.Decimal `json:"total_profit" db:"total_profit"`
	TotalLoss        decimal.Decimal `json:"total_loss" db:"total_loss"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// Period is one of the four rolling leaderboard windows.
type Period string

const (
	PeriodDaily   Period = "DAILY"
	PeriodWeekly  Period = "WEEKLY"
	PeriodMonthly Period = "MONTHLY"
	PeriodAllTime Period = "ALL_TIME"
)

// Periods lists all windows in processing order.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}

// ParsePeriod validates a raw period string from a URL or storage row.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return Period(s), nil
	}
	return "", fmt.Errorf("model: invalid leaderboard period %q", s)
}

// Start returns the window start for this period relative to now.
// ALL_TIME starts at the epoch.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return now.AddDate(0, 0, -1)
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return now.AddDate(0, -1, 0)
	default:
		return time.Unix(0, 0).UTC()
	}
}

// LeaderboardEntry is one ranked row of one period's leaderboard. Rows are
// created fresh on every run and never updated in place; superseded rows are
// deleted and replaced, and rows past the retention horizon are purged.
type LeaderboardEntry struct {
	ID               string          `json:"id" db:"id"`
	RunID            string          `json:"run_id" db:"run_id"`
	OwnerID          string          `json:"owner_id" db:"owner_id"`
	Period           Period          `json:"period" db:"period"`
	Rank             int             `json:"rank" db:"rank"`
	TotalReturn      decimal.Decimal `json:"total_return" db:"total_return"` // percent
	WinRate          decimal.Decimal `json:"win_rate" db:"win_rate"`         // percent
	TotalTrades      int             `json:"total_trades" db:"total_trades"`
	ProfitableTrades int             `json:"profitable_trades" db:"profitable_trades"`
	PortfolioValue   decimal.Decimal `json:"portfolio_value" db:"portfolio_value"`
	CalculatedAt     time.Time       `json:"calculated_at" db:"calculated_at"`
}

// RiskMetrics is the expanded analytics view for one trader: derived values,
// computed on demand and never persisted. Ratios are statistics, not money,
// so they are plain float64; mathematically undefined divisions are replaced
// by a finite sentinel (999) or 0 to keep the set total-ordered and
// JSON-serializable.
type RiskMetrics struct {
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	ConsistencyScore int     `json:"consistency_score"`
	ProfitFactor     float64 `json:"profit_factor"`
	AvgDailyReturn   float64 `json:"avg_daily_return"`
	Volatility       float64 `json:"volatility"`
	RecoveryFactor   float64 `json:"recovery_factor"`
	CalmarRatio      float64 `json:"calmar_ratio"`
}

// PortfolioSnapshot is the raw per-user portfolio as delivered by the
// upstream execution system, before decimal conversion. Diagnostics operate
// on this form because NaN/Infinity can only exist at the float boundary.
type PortfolioSnapshot struct {
	OwnerID  string            `json:"owner_id"`
	Cash     float64           `json:"cash"`
	Holdings []HoldingSnapshot `json:"holdings"`
}

// HoldingSnapshot is one raw holding inside a PortfolioSnapshot.
type HoldingSnapshot struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
}
