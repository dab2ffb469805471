package observability

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/artevida/askql/internal/config"
)

type ctxKey struct{}

// TraceAttr is the attribute key request-scoped loggers carry.
const TraceAttr = "trace_id"

// NewLogger builds the process logger. Durations are rendered as
// fractional milliseconds so pipeline stage timings sort numerically.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Observability.LogLevel,
		AddSource:   cfg.Profile == config.ProfileDev,
		ReplaceAttr: millisDurations,
	}
	return slog.New(newHandler(writer, cfg.Observability.LogJSON, opts)).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func newHandler(w io.Writer, json bool, opts *slog.HandlerOptions) slog.Handler {
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func millisDurations(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindDuration {
		return attr
	}
	ms := float64(attr.Value.Duration()) / float64(time.Millisecond)
	return slog.Float64(attr.Key+"_ms", ms)
}

// LoggerFromContext returns logger with the request's trace id attached when
// one is present.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return logger.With(slog.String(TraceAttr, traceID))
	}
	return logger
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(ctxKey{}).(string)
	return traceID
}
