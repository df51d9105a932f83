package journal

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tjournal/journal-engine/internal/images"
	"github.com/tjournal/journal-engine/internal/metrics"
)

// RouterOptions configures the HTTP surface shared by every route.
type RouterOptions struct {
	// APIKey, when set, is required as a Bearer token on /api routes.
	APIKey          string
	CORSAllowOrigin string
	// RequestTimeout bounds each request; zero disables it.
	RequestTimeout time.Duration
	// Quiet drops the per-request access log.
	Quiet bool
}

// NewRouter mounts the journal, image and WebSocket handlers. hub may be
// nil, in which case /api/ws is not served.
func NewRouter(svc *Service, img *images.Handler, hub *Hub, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	if !opts.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(opts.CORSAllowOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"journal-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(opts.APIKey))

		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Route("/trades", func(r chi.Router) {
			r.Get("/", svc.ListTrades)
			r.Post("/", svc.CreateTrade)
			r.Get("/stats", svc.Stats)
			r.Get("/dashboard", svc.Dashboard)
			r.Get("/export", svc.Export)
			r.Get("/{id}", svc.GetTrade)
			r.Put("/{id}", svc.UpdateTrade)
			r.Delete("/{id}", svc.DeleteTrade)
		})

		r.Post("/images", img.Upload)
		r.Get("/images/{filename}", img.Serve)
	})

	return r
}

// --- middleware ---

// authMiddleware requires "Authorization: Bearer <apiKey>". An empty key
// disables the check.
func authMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				writeError(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware answers preflight requests and tags every response for
// the browser client.
func corsMiddleware(allowOrigin string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
