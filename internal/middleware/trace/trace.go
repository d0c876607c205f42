package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fortuna/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// HeaderRequestID is read from the request and echoed on the response.
	HeaderRequestID = "X-Request-ID"
	maxRequestIDLen = 128
)

// Middleware assigns request ids and logs one record per request.
type Middleware struct {
	extractIP func(*http.Request) string
	requests  atomic.Int64
	totalMs   atomic.Int64
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.requests.Add(1)
		m.totalMs.Add(duration.Milliseconds())

		logLevel := slog.LevelInfo
		if rw.statusCode >= 500 {
			logLevel = slog.LevelError
		} else if rw.statusCode >= 400 {
			logLevel = slog.LevelWarn
		}

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		slog.Log(ctx, logLevel, "HTTP request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests int64
	// AverageResponseMs is the mean duration over every traced request.
	AverageResponseMs int64
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	n := m.requests.Load()
	out := Metrics{TotalRequests: n}
	if n > 0 {
		out.AverageResponseMs = m.totalMs.Load() / n
	}
	return out
}
