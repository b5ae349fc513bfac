// Package risk derives risk-adjusted performance metrics from an ordered
// trade sequence and a starting capital.
//
// Every function here is pure: no I/O, no clocks, no stored state. Capital
// simulation runs on shopspring/decimal; the statistical layer (means,
// deviations, ratios) converts to float64 at the boundary and stays there,
// the same split the rest of the engine uses for money versus math.
//
// Ratios that are mathematically undefined in the "no drawdown / no loss"
// case return the finite sentinel 999 (good outcome) or 0 (no signal)
// instead of Inf/NaN, keeping all outputs total-ordered and serializable.
package risk

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
	"github.com/traderhub/rank-engine/internal/pnl"
)

const (
	// TradingDaysPerYear annualizes daily return statistics.
	TradingDaysPerYear = 252

	// RiskFreeRate is the annualized risk-free return in percent, the same
	// unit as the annualized mean daily return it is subtracted from.
	RiskFreeRate = 2.0

	// Sentinel replaces ratios whose denominator is zero while the
	// numerator is positive.
	Sentinel = 999
)

// DefaultInitialCapital is assumed when no starting capital is configured.
var DefaultInitialCapital = decimal.NewFromInt(100000)

// dayKey buckets a trade into its UTC calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// applyTrade moves simulated capital: a SELL adds price×qty, a BUY subtracts.
func applyTrade(capital decimal.Decimal, t model.Trade) decimal.Decimal {
	notional := t.Price.Mul(t.Quantity)
	if t.Side == model.SideSell {
		return capital.Add(notional)
	}
	return capital.Sub(notional)
}

// sortByTime returns the trades in chronological order without mutating the
// caller's slice.
func sortByTime(trades []model.Trade) []model.Trade {
	sorted := make([]model.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TradedAt.Before(sorted[j].TradedAt)
	})
	return sorted
}

// DailyReturns simulates running capital day by day and returns each
// calendar day's percentage return, in chronological order.
func DailyReturns(trades []model.Trade, initialCapital decimal.Decimal) []float64 {
	if len(trades) == 0 {
		return nil
	}
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = DefaultInitialCapital
	}

	sorted := sortByTime(trades)
	capital := initialCapital
	var returns []float64

	i := 0
	for i < len(sorted) {
		day := dayKey(sorted[i].TradedAt)
		dayStart := capital
		for i < len(sorted) && dayKey(sorted[i].TradedAt) == day {
			capital = applyTrade(capital, sorted[i])
			i++
		}
		if dayStart.IsZero() {
			returns = append(returns, 0)
			continue
		}
		r, _ := capital.Sub(dayStart).Div(dayStart).Mul(decimal.NewFromInt(100)).Float64()
		returns = append(returns, r)
	}
	return returns
}

// TotalReturn is the simulated end-to-end capital return in percent.
func TotalReturn(trades []model.Trade, initialCapital decimal.Decimal) float64 {
	if len(trades) == 0 {
		return 0
	}
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = DefaultInitialCapital
	}
	capital := initialCapital
	for _, t := range sortByTime(trades) {
		capital = applyTrade(capital, t)
	}
	r, _ := capital.Sub(initialCapital).Div(initialCapital).Mul(decimal.NewFromInt(100)).Float64()
	return r
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// SharpeRatio computes the annualized Sharpe ratio from daily simulated
// returns. Returns 0 for fewer than 2 trades or zero volatility.
func SharpeRatio(trades []model.Trade, initialCapital decimal.Decimal) float64 {
	if len(trades) < 2 {
		return 0
	}
	returns := DailyReturns(trades, initialCapital)
	annStd := stdDev(returns) * math.Sqrt(TradingDaysPerYear)
	if annStd == 0 {
		return 0
	}
	return (mean(returns)*TradingDaysPerYear - RiskFreeRate) / annStd
}

// MaxDrawdown walks the trade sequence chronologically and reports the
// largest percentage decline from a running capital peak. Returns 0 for an
// empty trade list.
func MaxDrawdown(trades []model.Trade, initialCapital decimal.Decimal) float64 {
	if len(trades) == 0 {
		return 0
	}
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = DefaultInitialCapital
	}

	capital := initialCapital
	peak := initialCapital
	maxDD := 0.0

	for _, t := range sortByTime(trades) {
		capital = applyTrade(capital, t)
		if capital.GreaterThan(peak) {
			peak = capital
			continue
		}
		if peak.LessThanOrEqual(decimal.Zero) {
			continue
		}
		dd, _ := peak.Sub(capital).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// AvgDailyReturn is the mean of the per-day percentage returns.
func AvgDailyReturn(trades []model.Trade, initialCapital decimal.Decimal) float64 {
	return mean(DailyReturns(trades, initialCapital))
}

// Volatility is the population standard deviation of per-day returns.
// Returns 0 with fewer than 2 trading days.
func Volatility(trades []model.Trade, initialCapital decimal.Decimal) float64 {
	return stdDev(DailyReturns(trades, initialCapital))
}

// ConsistencyScore blends win rate, trading frequency, and positive return
// magnitude into a 0–100 integer. The normalization constants (5 trades/day
// and 50% return treated as excellent) are tuning points, not derived.
func ConsistencyScore(winRate, avgTradesPerDay, totalReturn float64) int {
	returnComponent := 0.0
	if totalReturn > 0 {
		returnComponent = math.Min(totalReturn/50*100, 100)
	}
	score := 0.4*math.Min(winRate, 100) +
		0.3*math.Min(avgTradesPerDay/5*100, 100) +
		0.3*returnComponent
	return int(math.Round(score))
}

// ProfitFactor is totalProfit / totalLoss. A zero loss yields the sentinel
// when any profit exists, otherwise 0.
func ProfitFactor(totalProfit, totalLoss decimal.Decimal) float64 {
	if totalLoss.IsZero() {
		if totalProfit.IsPositive() {
			return Sentinel
		}
		return 0
	}
	pf, _ := totalProfit.Div(totalLoss).Float64()
	return pf
}

// RecoveryFactor is |totalReturn / maxDrawdown|, with the zero-drawdown
// sentinel policy.
func RecoveryFactor(totalReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		if totalReturn > 0 {
			return Sentinel
		}
		return 0
	}
	return math.Abs(totalReturn / maxDrawdown)
}

// CalmarRatio is annualReturn / maxDrawdown, with the zero-drawdown
// sentinel policy.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		if annualReturn > 0 {
			return Sentinel
		}
		return 0
	}
	return annualReturn / maxDrawdown
}

// Compute assembles the full metric set for one trader's window.
func Compute(trades []model.Trade, initialCapital decimal.Decimal, attr pnl.Attribution) model.RiskMetrics {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = DefaultInitialCapital
	}

	days := make(map[string]struct{})
	for _, t := range trades {
		days[dayKey(t.TradedAt)] = struct{}{}
	}
	avgTradesPerDay := 0.0
	if len(days) > 0 {
		avgTradesPerDay = float64(len(trades)) / float64(len(days))
	}

	totalReturn := TotalReturn(trades, initialCapital)
	maxDD := MaxDrawdown(trades, initialCapital)
	avgDaily := AvgDailyReturn(trades, initialCapital)
	winRate, _ := attr.WinRate().Float64()

	return model.RiskMetrics{
		SharpeRatio:      SharpeRatio(trades, initialCapital),
		MaxDrawdown:      maxDD,
		ConsistencyScore: ConsistencyScore(winRate, avgTradesPerDay, totalReturn),
		ProfitFactor:     ProfitFactor(attr.TotalProfit, attr.TotalLoss),
		AvgDailyReturn:   avgDaily,
		Volatility:       Volatility(trades, initialCapital),
		RecoveryFactor:   RecoveryFactor(totalReturn, maxDD),
		CalmarRatio:      CalmarRatio(avgDaily*TradingDaysPerYear, maxDD),
	}
}
