// Package diagnose provides pre-flight and post-hoc sanity checks around
// portfolio mutations: weighted-average recomputation, buy/sell order
// validation, and full-portfolio scans for negative values, non-finite
// numbers, and precision drift.
//
// Checks operate on raw float64 inputs as delivered by the upstream
// execution system, because NaN and Infinity can only exist before decimal
// conversion. Failures are reported as structured results with Errors and
// Warnings lists, never as panics. Callers decide whether to abort.
package diagnose

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/model"
)

// precisionPlaces is how many decimal places a currency amount may carry
// before it counts as floating-point drift.
const precisionPlaces = 2

// Result is the common shape of a validation outcome. Errors are must-fix
// conditions; Warnings are cosmetic (precision drift and the like).
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// finite reports whether f is neither NaN nor ±Inf.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// hasDrift reports whether f carries more than precisionPlaces decimals.
func hasDrift(f float64) bool {
	if !finite(f) {
		return false
	}
	shifted := f * math.Pow10(precisionPlaces)
	return math.Abs(shifted-math.Round(shifted)) > 1e-9
}

// AveragePriceResult is the outcome of recomputing a weighted average price.
type AveragePriceResult struct {
	Result
	CalculatedAvg decimal.Decimal `json:"calculated_avg"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// ValidateAveragePrice recomputes the weighted average an execution system
// should arrive at when folding a new BUY into an existing holding, and
// flags negative inputs, non-positive new lots, and non-finite values.
func ValidateAveragePrice(existingQty, existingPrice, newQty, newPrice float64) AveragePriceResult {
	res := AveragePriceResult{Result: Result{Valid: true}}

	for _, in := range []struct {
		label string
		value float64
	}{
		{"existing quantity", existingQty},
		{"existing price", existingPrice},
		{"new quantity", newQty},
		{"new price", newPrice},
	} {
		if !finite(in.value) {
			res.fail("%s is not a finite number", in.label)
		}
	}
	if !res.Valid {
		return res
	}

	if existingQty < 0 {
		res.fail("existing quantity is negative: %v", existingQty)
	}
	if existingPrice < 0 {
		res.fail("existing price is negative: %v", existingPrice)
	}
	if newQty <= 0 {
		res.fail("new quantity must be positive: %v", newQty)
	}
	if newPrice <= 0 {
		res.fail("new price must be positive: %v", newPrice)
	}
	if !res.Valid {
		return res
	}

	eq := decimal.NewFromFloat(existingQty)
	ep := decimal.NewFromFloat(existingPrice)
	nq := decimal.NewFromFloat(newQty)
	np := decimal.NewFromFloat(newPrice)

	res.TotalQuantity = eq.Add(nq)
	res.CalculatedAvg = eq.Mul(ep).Add(nq.Mul(np)).Div(res.TotalQuantity)

	if hasDrift(existingPrice) || hasDrift(newPrice) {
		res.warn("input prices carry more than %d decimal places", precisionPlaces)
	}
	return res
}

// BuyOrderResult is the outcome of validating a proposed BUY.
type BuyOrderResult struct {
	Result
	Cost          decimal.Decimal `json:"cost"`
	RemainingCash decimal.Decimal `json:"remaining_cash"`
}

// ValidateBuyOrder checks a proposed BUY against available cash. An order
// whose cost exceeds cash fails with an insufficient-funds error and no
// negative remaining balance is ever reported.
func ValidateBuyOrder(cash, qty, price float64) BuyOrderResult {
	res := BuyOrderResult{Result: Result{Valid: true}}

	if !finite(cash) || !finite(qty) || !finite(price) {
		res.fail("order inputs must be finite numbers")
		return res
	}
	if qty <= 0 {
		res.fail("quantity must be positive: %v", qty)
	}
	if price <= 0 {
		res.fail("price must be positive: %v", price)
	}
	if !res.Valid {
		return res
	}

	cashD := decimal.NewFromFloat(cash)
	res.Cost = decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))

	if cashD.LessThan(res.Cost) {
		res.fail("insufficient funds: cost %s exceeds cash %s", res.Cost, cashD)
		return res
	}
	res.RemainingCash = cashD.Sub(res.Cost)

	if hasDrift(price) {
		res.warn("price carries more than %d decimal places", precisionPlaces)
	}
	return res
}

// SellOrderResult is the outcome of validating a proposed SELL.
type SellOrderResult struct {
	Result
	Proceeds     decimal.Decimal `json:"proceeds"`
	NewCash      decimal.Decimal `json:"new_cash"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
}

// ValidateSellOrder checks a proposed SELL against the current holding and
// returns the resulting cash and remaining quantity. Selling more than held
// fails with an insufficient-holdings error and proposes no mutation.
func ValidateSellOrder(holdingQty, cash, qty, price float64) SellOrderResult {
	res := SellOrderResult{Result: Result{Valid: true}}

	if !finite(holdingQty) || !finite(cash) || !finite(qty) || !finite(price) {
		res.fail("order inputs must be finite numbers")
		return res
	}
	if qty <= 0 {
		res.fail("quantity must be positive: %v", qty)
	}
	if price <= 0 {
		res.fail("price must be positive: %v", price)
	}
	if !res.Valid {
		return res
	}

	if holdingQty < qty {
		res.fail("insufficient holdings: have %v, selling %v", holdingQty, qty)
		return res
	}

	res.Proceeds = decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))
	res.NewCash = decimal.NewFromFloat(cash).Add(res.Proceeds)
	res.RemainingQty = decimal.NewFromFloat(holdingQty).Sub(decimal.NewFromFloat(qty))

	if hasDrift(price) {
		res.warn("price carries more than %d decimal places", precisionPlaces)
	}
	return res
}

// Summary aggregates the portfolio-wide findings of a diagnosis.
type Summary struct {
	TotalInvested      decimal.Decimal `json:"total_invested"`
	HasNegativeValues  bool            `json:"has_negative_values"`
	HasPrecisionIssues bool            `json:"has_precision_issues"`
}

// Diagnosis categorizes portfolio findings into must-fix issues and
// cosmetic warnings.
type Diagnosis struct {
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
	Summary  Summary  `json:"summary"`
}

// Healthy reports whether the portfolio has no must-fix issues.
func (d Diagnosis) Healthy() bool {
	return len(d.Issues) == 0
}

// DiagnosePortfolio scans cash and every holding for negative values,
// NaN/Infinity, and precision drift.
func DiagnosePortfolio(p model.PortfolioSnapshot) Diagnosis {
	var diag Diagnosis

	checkValue := func(label string, v float64) bool {
		if !finite(v) {
			diag.Issues = append(diag.Issues, fmt.Sprintf("%s is not a finite number", label))
			return false
		}
		if v < 0 {
			diag.Issues = append(diag.Issues, fmt.Sprintf("%s is negative: %v", label, v))
			diag.Summary.HasNegativeValues = true
			return false
		}
		if hasDrift(v) {
			diag.Warnings = append(diag.Warnings,
				fmt.Sprintf("%s carries more than %d decimal places: %v", label, precisionPlaces, v))
			diag.Summary.HasPrecisionIssues = true
		}
		return true
	}

	checkValue("cash balance", p.Cash)

	for _, h := range p.Holdings {
		qtyOK := checkValue(fmt.Sprintf("holding %s quantity", h.Ticker), h.Quantity)
		priceOK := checkValue(fmt.Sprintf("holding %s average price", h.Ticker), h.AveragePrice)
		if qtyOK && priceOK {
			diag.Summary.TotalInvested = diag.Summary.TotalInvested.Add(
				decimal.NewFromFloat(h.Quantity).Mul(decimal.NewFromFloat(h.AveragePrice)))
		}
	}
	return diag
}
