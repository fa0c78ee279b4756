// Package middleware provides HTTP and gRPC middleware for the leakwatch
// server: request IDs, structured request logs, metrics and panic recovery.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
)

// HTTPConfig configures the HTTP middleware
type HTTPConfig struct {
	// Header carrying the caller's request ID
	RequestIDHeader string `json:"request_id_header"`

	// Paths served without request logs
	ExemptPaths []string `json:"exempt_paths"`
}

// DefaultHTTPConfig returns default HTTP middleware configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		RequestIDHeader: "X-Request-ID",
		ExemptPaths:     []string{"/healthz", "/metrics"},
	}
}

type requestIDKey struct{}

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// HTTPMiddleware wraps next with request ID propagation, panic recovery,
// request logging and metrics.
func HTTPMiddleware(logger *slog.Logger, config *HTTPConfig) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultHTTPConfig()
	}
	exempt := make(map[string]bool, len(config.ExemptPaths))
	for _, p := range config.ExemptPaths {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(config.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(config.RequestIDHeader, requestID)
			r = r.WithContext(WithRequestID(r.Context(), requestID))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					logger.Error("panic serving request",
						"request_id", requestID,
						"path", r.URL.Path,
						"panic", p,
					)
					if !rec.wroteHeader {
						writeJSONError(rec, http.StatusInternalServerError, "internal error", requestID)
					}
				}

				elapsed := time.Since(start)
				metrics.RecordRequest("http", r.URL.Path, strconv.Itoa(rec.status), elapsed)
				if !exempt[r.URL.Path] {
					logger.Info("http request",
						"request_id", requestID,
						"method", r.Method,
						"path", r.URL.Path,
						"status", rec.status,
						"duration", elapsed,
					)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func writeJSONError(w http.ResponseWriter, status int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":      message,
		"request_id": requestID,
	})
}
