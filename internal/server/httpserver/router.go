package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/pagejournal/internal/telemetry/logger"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	// Gatherer supplies /metrics.
	Gatherer prometheus.Gatherer

	// Ready reports whether the page store can serve requests.
	// Nil means always ready.
	Ready func(ctx context.Context) error

	Logger *slog.Logger

	// RateLimit caps requests per second across all clients. Zero disables.
	// Ignored when Limiter is set.
	RateLimit int

	// Limiter replaces RateLimit with a rate the caller can change.
	Limiter *RequestLimiter
}

// NewRouter creates the handler with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", metric.Handler(cfg.Gatherer))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				log.WarnContext(r.Context(), "not ready", "error", err)
				writeStatus(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.HandleFunc("GET /loglevel", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"level": logger.GetLevel()})
	})
	mux.HandleFunc("PUT /loglevel", func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		if _, err := logger.ParseLevel(level); err != nil || level == "" {
			writeError(w, http.StatusBadRequest, "level must be debug, info, warn or error")
			return
		}
		logger.SetLevel(level)
		log.InfoContext(r.Context(), "log level changed", "level", logger.GetLevel())
		writeJSON(w, http.StatusOK, map[string]string{"level": logger.GetLevel()})
	})

	middlewares := []Middleware{RequestID(), Recover(log), AccessLog(log)}
	switch {
	case cfg.Limiter != nil:
		middlewares = append(middlewares, Limit(cfg.Limiter))
	case cfg.RateLimit > 0:
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}
	return Chain(mux, middlewares...)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	writeJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
