package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rinkcast/internal/services"
)

type Attr = slog.Attr

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStation is the standardized structured logging key for station identifiers.
	FieldStation = "station"
	// FieldTickID is the standardized structured logging key for pass correlation identifiers.
	FieldTickID = "tick_id"
	// FieldEventKey is the standardized structured logging key for calendar event identities.
	FieldEventKey = "event_key"
	// FieldBroadcastID is the standardized structured logging key for remote broadcast identifiers.
	FieldBroadcastID = "broadcast_id"
	// FieldResult is the standardized structured logging key for tick outcomes.
	FieldResult = "result"
)

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Time(key string, value time.Time) Attr { return slog.Time(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Secret truncates a credential so log lines can correlate tokens without
// disclosing them.
func Secret(key, value string) Attr {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return slog.String(key, "")
	}
	if len(trimmed) <= 6 {
		return slog.String(key, "***")
	}
	return slog.String(key, trimmed[:4]+"…")
}

func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WithContext returns a logger augmented with station and tick identifiers
// derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	fields := make([]Attr, 0, 2)
	if station, ok := services.StationFromContext(ctx); ok {
		fields = append(fields, String(FieldStation, station))
	}
	if id, ok := services.TickIDFromContext(ctx); ok {
		fields = append(fields, String(FieldTickID, id))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
