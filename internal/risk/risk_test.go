package risk_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
	"github.com/traderhub/rank-engine/internal/pnl"
	"github.com/traderhub/rank-engine/internal/risk"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var day0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func trade(side model.Side, qty, price float64, day int) model.Trade {
	return model.Trade{
		OwnerID:  "user1",
		Ticker:   "ACME",
		Side:     side,
		Quantity: d(qty),
		Price:    d(price),
		TradedAt: day0.AddDate(0, 0, day),
	}
}

func approx(t *testing.T, got, want, tol float64, label string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: expected ≈ %v, got %v", label, want, got)
	}
}

func TestDailyReturns_BucketsByCalendarDay(t *testing.T) {
	trades := []model.Trade{
		trade(model.SideSell, 1, 100, 0), // day 1: 1000 → 1100, +10%
		trade(model.SideBuy, 1, 55, 1),   // day 2: 1100 → 1045, -5%
	}

	returns := risk.DailyReturns(trades, d(1000))
	if len(returns) != 2 {
		t.Fatalf("expected 2 daily returns, got %d", len(returns))
	}
	approx(t, returns[0], 10, 1e-9, "day 1 return")
	approx(t, returns[1], -5, 1e-9, "day 2 return")
}

func TestTotalReturn(t *testing.T) {
	trades := []model.Trade{
		trade(model.SideSell, 1, 100, 0),
	}
	approx(t, risk.TotalReturn(trades, d(1000)), 10, 1e-9, "total return")

	if risk.TotalReturn(nil, d(1000)) != 0 {
		t.Error("empty trade list should return 0")
	}
}

func TestSharpeRatio_Degenerate(t *testing.T) {
	// Fewer than 2 trades.
	one := []model.Trade{trade(model.SideSell, 1, 100, 0)}
	if got := risk.SharpeRatio(one, d(1000)); got != 0 {
		t.Errorf("expected 0 for a single trade, got %v", got)
	}

	// Zero volatility: identical return each day.
	flat := []model.Trade{
		trade(model.SideSell, 1, 100, 0),  // 1000 → 1100, +10%
		trade(model.SideSell, 1, 110, 1),  // 1100 → 1210, +10%
	}
	if got := risk.SharpeRatio(flat, d(1000)); got != 0 {
		t.Errorf("expected 0 for zero volatility, got %v", got)
	}
}

func TestSharpeRatio_PositiveForProfitableVariedDays(t *testing.T) {
	trades := []model.Trade{
		trade(model.SideSell, 1, 100, 0), // +10%
		trade(model.SideSell, 1, 22, 1),  // +2%
	}
	if got := risk.SharpeRatio(trades, d(1000)); got <= 0 {
		t.Errorf("expected positive sharpe for profitable varied days, got %v", got)
	}
}

func TestMaxDrawdown_RunningPeak(t *testing.T) {
	trades := []model.Trade{
		trade(model.SideBuy, 1, 100, 0),  // 1000 → 900, dd 10%
		trade(model.SideSell, 1, 300, 1), // 900 → 1200, new peak
		trade(model.SideBuy, 1, 600, 2),  // 1200 → 600, dd 50%
	}
	approx(t, risk.MaxDrawdown(trades, d(1000)), 50, 1e-9, "max drawdown")
}

func TestMaxDrawdown_EmptyAndBounded(t *testing.T) {
	if got := risk.MaxDrawdown(nil, d(1000)); got != 0 {
		t.Errorf("expected 0 for empty list, got %v", got)
	}

	trades := []model.Trade{
		trade(model.SideBuy, 2, 150, 0),
		trade(model.SideSell, 1, 90, 1),
		trade(model.SideBuy, 3, 40, 2),
		trade(model.SideSell, 4, 55, 3),
	}
	got := risk.MaxDrawdown(trades, d(1000))
	if got < 0 || got > 100 {
		t.Errorf("drawdown must stay within [0, 100], got %v", got)
	}
}

func TestVolatility_RequiresTwoDays(t *testing.T) {
	sameDay := []model.Trade{
		trade(model.SideSell, 1, 100, 0),
		trade(model.SideBuy, 1, 50, 0),
	}
	if got := risk.Volatility(sameDay, d(1000)); got != 0 {
		t.Errorf("expected 0 volatility for a single trading day, got %v", got)
	}
}

func TestConsistencyScore(t *testing.T) {
	if got := risk.ConsistencyScore(100, 5, 50); got != 100 {
		t.Errorf("perfect inputs should score 100, got %d", got)
	}
	if got := risk.ConsistencyScore(50, 2.5, 0); got != 35 {
		t.Errorf("expected 35 (0.4*50 + 0.3*50 + 0), got %d", got)
	}
	if got := risk.ConsistencyScore(0, 0, -20); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	// Components clamp at 100 individually.
	if got := risk.ConsistencyScore(100, 50, 500); got != 100 {
		t.Errorf("clamped inputs should still score 100, got %d", got)
	}
}

func TestProfitFactor_Sentinels(t *testing.T) {
	if got := risk.ProfitFactor(decimal.Zero, decimal.Zero); got != 0 {
		t.Errorf("no profit, no loss → 0, got %v", got)
	}
	if got := risk.ProfitFactor(d(100), decimal.Zero); got != risk.Sentinel {
		t.Errorf("profit without loss → sentinel, got %v", got)
	}
	approx(t, risk.ProfitFactor(d(100), d(50)), 2, 1e-9, "profit factor")
}

func TestRecoveryFactor(t *testing.T) {
	if got := risk.RecoveryFactor(10, 0); got != risk.Sentinel {
		t.Errorf("zero drawdown with gains → sentinel, got %v", got)
	}
	if got := risk.RecoveryFactor(0, 0); got != 0 {
		t.Errorf("no return, no drawdown → 0, got %v", got)
	}
	approx(t, risk.RecoveryFactor(-20, 10), 2, 1e-9, "recovery factor is absolute")
}

func TestCalmarRatio(t *testing.T) {
	approx(t, risk.CalmarRatio(25, 5), 5, 1e-9, "calmar")
	if got := risk.CalmarRatio(10, 0); got != risk.Sentinel {
		t.Errorf("zero drawdown with gains → sentinel, got %v", got)
	}
	if got := risk.CalmarRatio(-10, 0); got != 0 {
		t.Errorf("zero drawdown without gains → 0, got %v", got)
	}
}

func TestCompute_EmptyTradesIsAllZero(t *testing.T) {
	m := risk.Compute(nil, decimal.Zero, pnl.Attribution{})

	if m != (model.RiskMetrics{}) {
		t.Errorf("expected zero-valued metrics for empty input, got %+v", m)
	}
}

func TestCompute_AssemblesConsistentSet(t *testing.T) {
	trades := []model.Trade{
		trade(model.SideBuy, 10, 100, 0),
		trade(model.SideSell, 10, 120, 1),
	}
	attr := pnl.Attribute(trades)

	m := risk.Compute(trades, d(10000), attr)

	if m.ProfitFactor != risk.Sentinel {
		t.Errorf("all-profit window should hit sentinel, got %v", m.ProfitFactor)
	}
	if m.MaxDrawdown <= 0 {
		t.Errorf("buy-then-sell dips capital, expected positive drawdown, got %v", m.MaxDrawdown)
	}
	if m.ConsistencyScore <= 0 || m.ConsistencyScore > 100 {
		t.Errorf("consistency score out of range: %d", m.ConsistencyScore)
	}
}
