package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/onlinetalk/onlinetalk/internal/logger"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Middleware stack: request ID, real IP, request logging, panic
// recovery, request timeout.
func NewRouter(status StatusProvider) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", handleLiveness)
		r.Get("/ready", handleReadiness(status))
	})

	r.Get("/api/v1/status", handleStatus(status))

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// statusResponse is the /api/v1/status document.
type statusResponse struct {
	OnlineUsers       int    `json:"online_users"`
	ActiveConnections int    `json:"active_connections"`
	StartedAt         string `json:"started_at"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness reports ready once the chat listener is up.
func handleReadiness(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status == nil || status.StartedAt().IsZero() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleStatus(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		startedAt := status.StartedAt()
		writeJSON(w, http.StatusOK, statusResponse{
			OnlineUsers:       status.OnlineUsers(),
			ActiveConnections: status.ActiveConnections(),
			StartedAt:         startedAt.UTC().Format(time.RFC3339),
			UptimeSeconds:     int64(time.Since(startedAt).Seconds()),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs requests using the internal logger. Healthcheck
// requests are logged at DEBUG to reduce noise under probing.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("status request completed", logArgs...)
		} else {
			logger.Info("status request completed", logArgs...)
		}
	})
}
