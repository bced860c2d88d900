// Package observability provides structured logging helpers for inboxd.
//
// It wraps log/slog with trace ID propagation so every log line emitted
// while handling one command carries the dispatch's trace context.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/inboxai/inboxd/common/trace"
)

// Setup configures the global slog logger according to the provided level
// and format strings (e.g. level="info", format="json").
func Setup(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// EnsureTraceID returns ctx carrying a trace ID, generating a fresh one
// when none is present.
func EnsureTraceID(ctx context.Context) context.Context {
	if trace.FromContext(ctx) != "" {
		return ctx
	}
	return trace.WithTraceID(ctx, trace.NewID())
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return slog.Default()
	}
	return slog.With("trace_id", traceID)
}
