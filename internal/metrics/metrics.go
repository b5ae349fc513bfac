// Package metrics provides Prometheus instrumentation for the ranking engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts leaderboard batch runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankengine_runs_total",
		Help: "Total leaderboard batch runs",
	}, []string{"outcome"})

	// RunDuration tracks how long a full batch run takes.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rankengine_run_duration_seconds",
		Help:    "Leaderboard batch run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// EntriesCreated counts leaderboard rows written, per period.
	EntriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankengine_entries_created_total",
		Help: "Leaderboard rows written",
	}, []string{"period"})

	// UserFailures counts per-user compute failures isolated during a run.
	UserFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankengine_user_failures_total",
		Help: "Per-user compute failures isolated during batch runs",
	}, []string{"period"})

	// SweptEntries counts rows removed by the retention sweep.
	SweptEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rankengine_swept_entries_total",
		Help: "Leaderboard rows removed by the retention sweep",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rankengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rankengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the route surface is small.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
