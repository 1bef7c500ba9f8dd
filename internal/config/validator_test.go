package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	cfg := &Config{
		Proxy:   ProxyConfig{Addr: "127.0.0.1:8899"},
		Runtime: RuntimeConfig{Kind: "docker", ContainerName: "crabpot-sandbox", ConfigDir: "/etc/crabpot"},
		Security: SecurityConfig{
			Preset: "standard",
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_MissingProxyAddrIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Proxy.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing proxy addr")
	}
	if !strings.Contains(err.Error(), "Proxy.Addr") {
		t.Errorf("error %q should mention Proxy.Addr", err)
	}
}

func TestValidate_UnknownRuntimeKindIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Runtime.Kind = "kubernetes"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported runtime kind")
	}
}

func TestValidate_UnknownSecurityPresetIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Security.Preset = "extreme"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown security preset")
	}
}

func TestValidate_UnknownSecurityOverrideKeyIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Security.Overrides = map[string]bool{"NotARealField": true}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unrecognized security override key")
	}
}

func TestValidate_InvalidLogLevelIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LogLevel = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_InvalidWebSocketAddrIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Alerts.WebSocketAddr = "not-a-host-port"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid websocket_addr")
	}
}

func TestValidate_InvalidTracingExporterIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.TracingExporter = "otlp"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported tracing exporter")
	}
}

func TestValidate_InvalidUnknownActionIsError(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policy.UnknownAction = "ask-nicely"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported policy unknown_action")
	}
}
