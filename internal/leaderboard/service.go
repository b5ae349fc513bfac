package leaderboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/traderhub/rank-engine/internal/diagnose"
	"github.com/traderhub/rank-engine/internal/model"
	"github.com/traderhub/rank-engine/internal/pnl"
	"github.com/traderhub/rank-engine/internal/risk"
	"github.com/traderhub/rank-engine/internal/store"
)

// defaultTopLimit caps leaderboard reads when no limit is given.
const defaultTopLimit = 50

// Service exposes the scheduler trigger and the read endpoints.
type Service struct {
	builder        *Builder
	store          store.Store
	cronSecret     string
	initialCapital decimal.Decimal
}

// NewService creates the HTTP service. An empty cronSecret disables the
// trigger's token check.
func NewService(builder *Builder, st store.Store, cronSecret string, initialCapital decimal.Decimal) *Service {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = decimal.NewFromInt(100000)
	}
	return &Service{
		builder:        builder,
		store:          st,
		cronSecret:     cronSecret,
		initialCapital: initialCapital,
	}
}

// UpdateLeaderboard handles GET and POST /update-leaderboard: the cron
// trigger. With a configured secret, a missing or mismatched Bearer token
// is rejected with 401.
func (s *Service) UpdateLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret != "" {
		if r.Header.Get("Authorization") != "Bearer "+s.cronSecret {
			writeError(w, "invalid or missing authorization token", http.StatusUnauthorized)
			return
		}
	}

	summary, err := s.builder.Run(r.Context())
	if err != nil {
		slog.Error("leaderboard run failed", "run_id", summary.RunID, "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "leaderboard update failed",
			"details": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetLeaderboard handles GET /api/v1/leaderboard/{period}?limit=N.
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := model.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.store.TopEntries(r.Context(), period, limit)
	if err != nil {
		writeError(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// analyticsResponse is the expanded per-trader analytics view.
type analyticsResponse struct {
	OwnerID     string            `json:"owner_id"`
	TotalTrades int               `json:"total_trades"`
	WinRate     decimal.Decimal   `json:"win_rate"`
	Metrics     model.RiskMetrics `json:"metrics"`
	ComputedAt  time.Time         `json:"computed_at"`
}

// GetAnalytics handles GET /api/v1/analytics/{userID}: the full risk-metric
// set over the user's complete trade history, computed on demand.
func (s *Service) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userID")

	trades, err := s.store.TradesByOwner(r.Context(), ownerID, time.Unix(0, 0).UTC())
	if err != nil {
		writeError(w, "failed to load trades", http.StatusInternalServerError)
		return
	}

	attr := pnl.Attribute(trades)
	resp := analyticsResponse{
		OwnerID:     ownerID,
		TotalTrades: attr.TotalTrades,
		WinRate:     attr.WinRate(),
		Metrics:     risk.Compute(trades, s.initialCapital, attr),
		ComputedAt:  time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DiagnosePortfolio handles POST /api/v1/diagnose: runs the portfolio
// sanity scan over a raw snapshot supplied by the caller.
func (s *Service) DiagnosePortfolio(w http.ResponseWriter, r *http.Request) {
	var snap model.PortfolioSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(diagnose.DiagnosePortfolio(snap))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
