package telemetry

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_DevModeForcesDebug(t *testing.T) {
	logger := NewLogger("error", true)
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected dev mode to force debug-level logging")
	}
}

func TestNewTracer_NoneIsDisabled(t *testing.T) {
	tr, err := NewTracer("none")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	if tr.Enabled() {
		t.Error("expected a \"none\" exporter tracer to be disabled")
	}
}

func TestNewTracer_StdoutIsEnabled(t *testing.T) {
	tr, err := NewTracer("stdout")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	if !tr.Enabled() {
		t.Error("expected a stdout exporter tracer to be enabled")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestEnforceSpan_RecordsDecision(t *testing.T) {
	tr, err := NewTracer("stdout")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	ctx, span := tr.StartEnforceSpan(context.Background(), "api.anthropic.com", 443)
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	tr.EndEnforceSpan(span, "allow")
}
