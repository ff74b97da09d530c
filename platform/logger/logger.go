// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// AdvisorIDKey is the context key for advisor ID
	AdvisorIDKey contextKey = "advisor_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with request_id and advisor_id extracted
// from the context, when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if advisorID, ok := ctx.Value(AdvisorIDKey).(string); ok && advisorID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("advisor_id", advisorID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// SchedulingOutcome logs the outcome of a scheduling request. Only metadata is
// logged; email subject and body never reach the log stream.
func (l *Logger) SchedulingOutcome(requestID, status, intentSource string, suggestionCount int, latencyMs float64) {
	l.Info("scheduling_outcome",
		slog.String("request_id", requestID),
		slog.String("status", status),
		slog.String("intent_source", intentSource),
		slog.Int("suggestion_count", suggestionCount),
		slog.Float64("latency_ms", latencyMs),
	)
}

// LLMFallback logs that an LLM call degraded to the deterministic path.
func (l *Logger) LLMFallback(stage string, err error) {
	l.Warn("llm_fallback",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// CalendarError logs a calendar provider failure.
func (l *Logger) CalendarError(operation string, err error) {
	l.Error("calendar_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// AuthEvent logs authentication events on the portal.
func (l *Logger) AuthEvent(event, subject string, success bool, reason string) {
	if success {
		l.Info("auth_event",
			slog.String("event", event),
			slog.String("subject", subject),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("auth_event",
			slog.String("event", event),
			slog.String("subject", subject),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
