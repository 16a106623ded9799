package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"rinkcast/internal/services"
)

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	NewComponentLogger(logger, "reconciler").Info("tick finished",
		String(FieldStation, "A"),
		String(FieldResult, "IDLE"),
	)

	line := buf.String()
	if !strings.Contains(line, "reconciler: tick finished") {
		t.Errorf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "station=A") || !strings.Contains(line, "result=IDLE") {
		t.Errorf("expected flattened fields, got %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Error("debug should map to LevelDebug")
	}
	if parseLevel("") != slog.LevelInfo {
		t.Error("empty level should map to LevelInfo")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Error("unknown level should map to LevelInfo")
	}
}

func TestSecretRedaction(t *testing.T) {
	attr := Secret("token", "super-secret-value")
	if got := attr.Value.String(); got != "supe…" {
		t.Errorf("Secret should truncate, got %q", got)
	}
	attr = Secret("token", "abc")
	if got := attr.Value.String(); got != "***" {
		t.Errorf("short secrets should be fully masked, got %q", got)
	}
}

func TestWithContextAddsStationAndTick(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	ctx := services.WithStation(context.Background(), "B")
	ctx = services.WithTickID(ctx, "t-1")
	WithContext(ctx, logger).Info("hello")

	line := buf.String()
	if !strings.Contains(line, "station=B") || !strings.Contains(line, "tick_id=t-1") {
		t.Errorf("context fields missing: %q", line)
	}
}
