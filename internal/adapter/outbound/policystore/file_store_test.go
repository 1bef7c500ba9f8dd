package policystore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoad_MissingFileReturnsEmptyAllowlist(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "policy.txt"), testLogger())

	patterns, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("expected empty allowlist for missing file, got %v", patterns)
	}
}

func TestLoad_ParsesAllowedWildcardsAndBlockedExtras(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	content := "# comment\n\napi.anthropic.com\n*.github.com\n!known-bad.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewFileStore(path, testLogger())

	allowed, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(allowed) != 2 {
		t.Fatalf("expected 2 allowed patterns, got %d: %v", len(allowed), allowed)
	}
	if allowed[0].String() != "api.anthropic.com" || allowed[1].String() != "*.github.com" {
		t.Fatalf("unexpected allowed patterns: %v", allowed)
	}

	extras, err := s.LoadBlockedExtras()
	if err != nil {
		t.Fatalf("LoadBlockedExtras: %v", err)
	}
	if len(extras) != 1 || extras[0] != "known-bad.example.com" {
		t.Fatalf("unexpected blocked extras: %v", extras)
	}
}

func TestSave_WritesHeaderAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	s := NewFileStore(path, testLogger())

	patterns := []policy.Pattern{policy.NewPattern("api.anthropic.com"), policy.NewPattern("*.openai.com")}
	if err := s.Save(patterns); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "# CrabPot Egress Allowlist") {
		t.Fatalf("expected header comment in saved file, got:\n%s", data)
	}

	reloaded, err := s.Load()
	if err != nil {
		t.Fatalf("reload Load: %v", err)
	}
	if len(reloaded) != 2 || reloaded[0].String() != "api.anthropic.com" || reloaded[1].String() != "*.openai.com" {
		t.Fatalf("round trip mismatch: %v", reloaded)
	}
}

func TestSave_NoTempFileLeftBehindOnSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	s := NewFileStore(path, testLogger())

	if err := s.Save([]policy.Pattern{policy.NewPattern("example.com")}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err: %v", err)
	}
}
