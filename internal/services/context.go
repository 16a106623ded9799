package services

import "context"

type contextKey string

const (
	stationKey contextKey = "station"
	tickIDKey  contextKey = "tick_id"
)

// WithStation annotates context with the station identifier.
func WithStation(ctx context.Context, station string) context.Context {
	if station == "" {
		return ctx
	}
	return context.WithValue(ctx, stationKey, station)
}

// StationFromContext returns the station identifier if present.
func StationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTickID annotates context with the correlation identifier for one pass.
func WithTickID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, tickIDKey, id)
}

// TickIDFromContext extracts the pass correlation identifier if present.
func TickIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(tickIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
