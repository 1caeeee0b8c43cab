package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = "request_id"

	contextKeyStartTime contextKey = "start_time"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one runs outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + ulid.Make().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, contextKeyStartTime, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLimiter is a request rate that can change while serving.
type RequestLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewRequestLimiter returns a limiter allowing requestsPerSecond with an
// equal burst. Zero or less allows everything.
func NewRequestLimiter(requestsPerSecond int) *RequestLimiter {
	l := &RequestLimiter{}
	l.SetRate(requestsPerSecond)
	return l
}

// SetRate replaces the allowed requests per second and refills the burst.
// Zero or less disables limiting.
func (l *RequestLimiter) SetRate(requestsPerSecond int) {
	if requestsPerSecond <= 0 {
		l.limiter.Store(nil)
		return
	}
	l.limiter.Store(rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond))
}

// Rate returns the allowed requests per second, 0 when unlimited.
func (l *RequestLimiter) Rate() int {
	if rl := l.limiter.Load(); rl != nil {
		return rl.Burst()
	}
	return 0
}

// Allow reports whether a request may proceed now.
func (l *RequestLimiter) Allow() bool {
	rl := l.limiter.Load()
	return rl == nil || rl.Allow()
}

// RateLimit rejects requests beyond requestsPerSecond with 429.
func RateLimit(requestsPerSecond int) Middleware {
	return Limit(NewRequestLimiter(requestsPerSecond))
}

// Limit rejects requests l does not allow with 429.
func Limit(l *RequestLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs every completed request.
func AccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			start, _ := r.Context().Value(contextKeyStartTime).(time.Time)
			attrs := []any{
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case wrapped.statusCode >= 500:
				logger.ErrorContext(r.Context(), "request failed", attrs...)
			case wrapped.statusCode >= 400:
				logger.WarnContext(r.Context(), "request rejected", attrs...)
			default:
				logger.DebugContext(r.Context(), "request completed", attrs...)
			}
		})
	}
}

// Recover turns handler panics into 500 responses.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						"request_id", GetRequestID(r.Context()),
						"error", err,
						"path", r.URL.Path,
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// GetRequestID returns the request ID stored by RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("X-Error-Code", strconv.Itoa(status))
	writeJSON(w, status, map[string]string{"message": message})
}
