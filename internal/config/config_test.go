package config

import (
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Proxy.Addr != "127.0.0.1:8899" {
		t.Errorf("Proxy.Addr = %q, want %q", cfg.Proxy.Addr, "127.0.0.1:8899")
	}
	if cfg.Runtime.Kind != "docker" {
		t.Errorf("Runtime.Kind = %q, want %q", cfg.Runtime.Kind, "docker")
	}
	if cfg.Runtime.ContainerName != "crabpot-sandbox" {
		t.Errorf("Runtime.ContainerName = %q, want %q", cfg.Runtime.ContainerName, "crabpot-sandbox")
	}
	if cfg.Security.Preset != "standard" {
		t.Errorf("Security.Preset = %q, want %q", cfg.Security.Preset, "standard")
	}
	if cfg.Admin.Addr != "127.0.0.1:8898" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, "127.0.0.1:8898")
	}
	if cfg.TracingExporter != "none" {
		t.Errorf("TracingExporter = %q, want %q", cfg.TracingExporter, "none")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if !cfg.Alerts.Stderr {
		t.Error("Alerts.Stderr should default to true when no other sink is configured")
	}
}

func TestConfig_SetDefaults_DoesNotOverrideExplicitAlertSink(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.Alerts.LogFile = "/var/log/crabpot/alerts.log"
	cfg.SetDefaults()

	if cfg.Alerts.Stderr {
		t.Error("Alerts.Stderr should stay false when a log file sink is already configured")
	}
}

func TestConfig_SetDevDefaults_OnlyAppliesWhenDevModeSet(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.Security.Preset = ""
	cfg.SetDevDefaults()
	if cfg.Security.Preset != "" {
		t.Errorf("SetDevDefaults should be a no-op without DevMode, got preset %q", cfg.Security.Preset)
	}

	cfg.DevMode = true
	cfg.SetDevDefaults()
	if cfg.Security.Preset != "minimal" {
		t.Errorf("Security.Preset = %q, want %q", cfg.Security.Preset, "minimal")
	}
}

func TestConfig_ResolveProfile_AppliesOverrides(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()
	cfg.Security.Preset = "minimal"
	cfg.Security.Overrides = map[string]bool{"ProcessWatchdog": true}
	cfg.Security.MemoryLimit = "8g"

	security, resource, err := cfg.ResolveProfile()
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if !security.ProcessWatchdog {
		t.Error("expected ProcessWatchdog override to apply")
	}
	if resource.MemoryLimit != "8g" {
		t.Errorf("MemoryLimit = %q, want %q", resource.MemoryLimit, "8g")
	}
}

func TestConfig_ResolveProfile_UnknownPresetIsError(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()
	cfg.Security.Preset = "ludicrous"

	if _, _, err := cfg.ResolveProfile(); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
