package diagnose_test

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/diagnose"
	"github.com/traderhub/rank-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func hasError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// --- ValidateAveragePrice ---

func TestValidateAveragePrice_Recomputes(t *testing.T) {
	res := diagnose.ValidateAveragePrice(10, 100, 10, 120)

	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if !res.CalculatedAvg.Equal(d(110)) {
		t.Errorf("expected avg 110, got %s", res.CalculatedAvg)
	}
	if !res.TotalQuantity.Equal(d(20)) {
		t.Errorf("expected total quantity 20, got %s", res.TotalQuantity)
	}
}

func TestValidateAveragePrice_WithinBounds(t *testing.T) {
	res := diagnose.ValidateAveragePrice(7, 93.5, 13, 141.25)

	if res.CalculatedAvg.LessThan(d(93.5)) || res.CalculatedAvg.GreaterThan(d(141.25)) {
		t.Errorf("avg %s outside price bounds", res.CalculatedAvg)
	}
}

func TestValidateAveragePrice_RejectsBadInputs(t *testing.T) {
	cases := []struct {
		name           string
		eq, ep, nq, np float64
	}{
		{"negative existing qty", -1, 100, 10, 100},
		{"negative existing price", 10, -5, 10, 100},
		{"zero new qty", 10, 100, 0, 100},
		{"zero new price", 10, 100, 10, 0},
		{"NaN price", 10, 100, 10, math.NaN()},
		{"infinite qty", 10, 100, math.Inf(1), 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := diagnose.ValidateAveragePrice(tc.eq, tc.ep, tc.nq, tc.np)
			if res.Valid {
				t.Errorf("expected invalid result")
			}
			if len(res.Errors) == 0 {
				t.Errorf("expected at least one error")
			}
		})
	}
}

// --- ValidateBuyOrder ---

func TestValidateBuyOrder_InsufficientFunds(t *testing.T) {
	// cash=1000, qty=10, price=150 → cost 1500 > cash.
	res := diagnose.ValidateBuyOrder(1000, 10, 150)

	if res.Valid {
		t.Fatal("expected insufficient-funds failure")
	}
	if !hasError(res.Errors, "insufficient funds") {
		t.Errorf("expected insufficient funds error, got %v", res.Errors)
	}
	// No negative remaining balance may ever be proposed.
	if res.RemainingCash.IsNegative() {
		t.Errorf("remaining cash must not go negative, got %s", res.RemainingCash)
	}
}

func TestValidateBuyOrder_Valid(t *testing.T) {
	res := diagnose.ValidateBuyOrder(2000, 10, 150)

	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
	if !res.Cost.Equal(d(1500)) {
		t.Errorf("expected cost 1500, got %s", res.Cost)
	}
	if !res.RemainingCash.Equal(d(500)) {
		t.Errorf("expected remaining cash 500, got %s", res.RemainingCash)
	}
}

func TestValidateBuyOrder_PrecisionWarning(t *testing.T) {
	res := diagnose.ValidateBuyOrder(2000, 10, 99.999)

	if !res.Valid {
		t.Fatalf("precision drift is a warning, not an error: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a precision warning for a 3-decimal price")
	}
}

// --- ValidateSellOrder ---

func TestValidateSellOrder_InsufficientHoldings(t *testing.T) {
	// holding=5, selling 10.
	res := diagnose.ValidateSellOrder(5, 1000, 10, 50)

	if res.Valid {
		t.Fatal("expected insufficient-holdings failure")
	}
	if !hasError(res.Errors, "insufficient holdings") {
		t.Errorf("expected insufficient holdings error, got %v", res.Errors)
	}
	// No mutation proposed on failure.
	if !res.NewCash.IsZero() || !res.RemainingQty.IsZero() {
		t.Errorf("failed sell must not propose cash/holdings changes")
	}
}

func TestValidateSellOrder_Valid(t *testing.T) {
	res := diagnose.ValidateSellOrder(10, 1000, 4, 50)

	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
	if !res.NewCash.Equal(d(1200)) {
		t.Errorf("expected new cash 1200, got %s", res.NewCash)
	}
	if !res.RemainingQty.Equal(d(6)) {
		t.Errorf("expected remaining qty 6, got %s", res.RemainingQty)
	}
}

// --- DiagnosePortfolio ---

func TestDiagnosePortfolio_Healthy(t *testing.T) {
	diag := diagnose.DiagnosePortfolio(model.PortfolioSnapshot{
		OwnerID: "user1",
		Cash:    1000,
		Holdings: []model.HoldingSnapshot{
			{Ticker: "A", Quantity: 10, AveragePrice: 100},
			{Ticker: "B", Quantity: 5, AveragePrice: 200},
			{Ticker: "C", Quantity: 20, AveragePrice: 50},
		},
	})

	if !diag.Healthy() {
		t.Fatalf("expected healthy portfolio, got issues: %v", diag.Issues)
	}
	// 10*100 + 5*200 + 20*50 = 3000 exactly.
	if !diag.Summary.TotalInvested.Equal(d(3000)) {
		t.Errorf("expected total invested 3000, got %s", diag.Summary.TotalInvested)
	}
}

func TestDiagnosePortfolio_NegativeAndNonFinite(t *testing.T) {
	diag := diagnose.DiagnosePortfolio(model.PortfolioSnapshot{
		Cash: -50,
		Holdings: []model.HoldingSnapshot{
			{Ticker: "A", Quantity: 10, AveragePrice: math.NaN()},
			{Ticker: "B", Quantity: math.Inf(1), AveragePrice: 10},
		},
	})

	if diag.Healthy() {
		t.Fatal("expected issues")
	}
	if !diag.Summary.HasNegativeValues {
		t.Error("expected negative-value flag")
	}
	if !hasError(diag.Issues, "not a finite number") {
		t.Errorf("expected non-finite issue, got %v", diag.Issues)
	}
	// Broken holdings must not pollute the invested total.
	if !diag.Summary.TotalInvested.IsZero() {
		t.Errorf("expected zero invested total, got %s", diag.Summary.TotalInvested)
	}
}

func TestDiagnosePortfolio_PrecisionDriftIsWarning(t *testing.T) {
	diag := diagnose.DiagnosePortfolio(model.PortfolioSnapshot{
		Cash: 100.0001,
		Holdings: []model.HoldingSnapshot{
			{Ticker: "A", Quantity: 1, AveragePrice: 33.333333},
		},
	})

	if !diag.Healthy() {
		t.Fatalf("drift is cosmetic, got issues: %v", diag.Issues)
	}
	if len(diag.Warnings) < 2 {
		t.Errorf("expected warnings for cash and price drift, got %v", diag.Warnings)
	}
	if !diag.Summary.HasPrecisionIssues {
		t.Error("expected precision flag")
	}
}
