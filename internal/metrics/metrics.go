// Package metrics provides Prometheus instrumentation for the journal engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JournalOps counts trade mutations and reads, partitioned by operation
	// (create, update, delete, list, get) and outcome (ok, error).
	JournalOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_operations_total",
		Help: "Journal operations by kind and outcome",
	}, []string{"op", "outcome"})

	// OpenTrades is the number of open positions seen by the last list.
	OpenTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_open_trades",
		Help: "Open positions in the most recent trade listing",
	})

	// ImageUploads counts upload attempts by outcome.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_image_uploads_total",
		Help: "Image uploads by outcome",
	}, []string{"outcome"})

	ImageUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_image_upload_bytes_total",
		Help: "Bytes written by successful image uploads",
	})

	// Exports counts spreadsheet exports by header language.
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_exports_total",
		Help: "Spreadsheet exports by language",
	}, []string{"lang"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Outcome labels a result for the outcome dimension.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern returns the matched chi pattern (/api/trades/{id}) so ids
// don't become label values. Unmatched requests share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
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

// Hijack passes through to the underlying writer for websocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
