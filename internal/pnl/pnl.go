// Package pnl attributes realized profit and loss to SELL trades using a
// window-level weighted-average cost basis.
//
// The cost basis for a ticker is the weighted average of ALL BUY trades in
// the analysis window, not just those preceding a given SELL. This is a
// deliberate policy choice over chronological lot matching (FIFO/LIFO):
// the leaderboard windows are short and the single scalar keeps attribution
// order-independent within a window. SELLs on a ticker with no in-window BUY
// carry no cost basis and are skipped entirely.
//
// All monetary values use shopspring/decimal, never float64.
package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
)

// SellResult is the realized outcome of a single SELL trade.
type SellResult struct {
	Trade  model.Trade
	Basis  decimal.Decimal // weighted-average buy price used as cost basis
	Profit decimal.Decimal // (sell price − basis) × quantity, signed
}

// TickerAttribution is the attribution result for one ticker's trade window.
type TickerAttribution struct {
	Ticker      string
	AvgBuyPrice decimal.Decimal
	BuyQuantity decimal.Decimal
	Sells       []SellResult

	// Skipped is true when the window contains SELLs but no BUYs, so no
	// cost basis exists and no P&L was attributed.
	Skipped bool
}

// Attribution aggregates realized P&L across every ticker in a window.
type Attribution struct {
	TotalTrades      int
	ProfitableTrades int
	TotalProfit      decimal.Decimal // sum of positive sell profits
	TotalLoss        decimal.Decimal // absolute sum of negative sell profits
}

// WinRate returns profitable trades as a percentage of total trades,
// rounded to two places. Zero trades yields zero.
func (a Attribution) WinRate() decimal.Decimal {
	if a.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(a.ProfitableTrades)).
		Div(decimal.NewFromInt(int64(a.TotalTrades))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// AttributeTicker computes the weighted-average buy price and per-SELL
// realized P&L for one ticker's ordered trade sequence.
func AttributeTicker(ticker string, trades []model.Trade) TickerAttribution {
	attr := TickerAttribution{Ticker: ticker}

	var buyNotional decimal.Decimal // Σ price × quantity over BUYs
	var sells []model.Trade

	for _, t := range trades {
		switch t.Side {
		case model.SideBuy:
			buyNotional = buyNotional.Add(t.Price.Mul(t.Quantity))
			attr.BuyQuantity = attr.BuyQuantity.Add(t.Quantity)
		case model.SideSell:
			sells = append(sells, t)
		}
	}

	// Zero buy quantity leaves the average undefined: skip attribution.
	if attr.BuyQuantity.IsZero() {
		attr.Skipped = len(sells) > 0
		return attr
	}
	attr.AvgBuyPrice = buyNotional.Div(attr.BuyQuantity)

	for _, s := range sells {
		attr.Sells = append(attr.Sells, SellResult{
			Trade:  s,
			Basis:  attr.AvgBuyPrice,
			Profit: s.Price.Sub(attr.AvgBuyPrice).Mul(s.Quantity),
		})
	}
	return attr
}

// Attribute partitions a mixed-ticker trade window by ticker, attributes each
// ticker via AttributeTicker, and sums the realized outcomes. TotalTrades
// counts every trade in the window, including BUYs and skipped SELLs.
func Attribute(trades []model.Trade) Attribution {
	agg := Attribution{TotalTrades: len(trades)}

	byTicker := make(map[string][]model.Trade)
	var order []string
	for _, t := range trades {
		if _, ok := byTicker[t.Ticker]; !ok {
			order = append(order, t.Ticker)
		}
		byTicker[t.Ticker] = append(byTicker[t.Ticker], t)
	}

	for _, ticker := range order {
		ta := AttributeTicker(ticker, byTicker[ticker])
		for _, s := range ta.Sells {
			switch {
			case s.Profit.IsPositive():
				agg.TotalProfit = agg.TotalProfit.Add(s.Profit)
				agg.ProfitableTrades++
			case s.Profit.IsNegative():
				agg.TotalLoss = agg.TotalLoss.Add(s.Profit.Abs())
			}
		}
	}
	return agg
}
