// Package config provides CrabPot's configuration schema: the egress
// proxy listener, the sandboxed runtime, the security preset, and the
// alert sinks, loaded from a YAML file with environment variable overrides
// via viper and validated with struct tags via validator/v10.
package config

import (
	"github.com/crabpot-sandbox/crabpot/internal/domain/monitor"
)

// Config is CrabPot's top-level configuration.
type Config struct {
	// Proxy configures the egress HTTP/HTTPS proxy listener.
	Proxy ProxyConfig `yaml:"proxy" mapstructure:"proxy"`

	// Runtime selects and configures the sandboxed workload's supervisor.
	Runtime RuntimeConfig `yaml:"runtime" mapstructure:"runtime"`

	// Policy configures the egress allowlist file and its default actions.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Security selects the monitoring/hardening preset (minimal, standard,
	// paranoid) plus any per-field overrides.
	Security SecurityConfig `yaml:"security" mapstructure:"security"`

	// ActionGate configures the human-approval gate for PENDING decisions.
	ActionGate ActionGateConfig `yaml:"action_gate" mapstructure:"action_gate"`

	// Admin configures the local approval API that "crabpot approve"/"crabpot
	// deny" talk to out-of-process.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Alerts configures which alert sinks are active.
	Alerts AlertsConfig `yaml:"alerts" mapstructure:"alerts"`

	// LogLevel is the slog level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// TracingExporter selects the OpenTelemetry span exporter: "none"
	// disables tracing, "stdout" pretty-prints spans to stdout.
	TracingExporter string `yaml:"tracing_exporter" mapstructure:"tracing_exporter" validate:"omitempty,oneof=none stdout"`

	// DevMode forces debug logging and lets SetDevDefaults pick the
	// "minimal" preset when no preset is set. It does not relax validation.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ProxyConfig configures the egress proxy's listener.
type ProxyConfig struct {
	// Addr is the host:port the egress proxy listens on.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
}

// RuntimeConfig selects the container runtime adapter and its identity.
type RuntimeConfig struct {
	// Kind selects the adapter: "docker" is the only one CrabPot ships.
	Kind string `yaml:"kind" mapstructure:"kind" validate:"required,oneof=docker"`

	// ContainerName is the name of the sandboxed workload's container.
	ContainerName string `yaml:"container_name" mapstructure:"container_name" validate:"required"`

	// ConfigDir holds the rendered docker-compose.yml and seccomp profile.
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir" validate:"required"`
}

// PolicyConfig configures the egress policy engine's persistence.
type PolicyConfig struct {
	// AllowlistFile is the path to the line-based allowlist file. Empty
	// means: search the standard locations, falling back to the cwd.
	AllowlistFile string `yaml:"allowlist_file" mapstructure:"allowlist_file"`

	// UnknownAction selects what happens to a domain that matches neither
	// the allowlist nor the blocklist: "pending" escalates it to the action
	// gate, "deny" rejects it outright.
	UnknownAction string `yaml:"unknown_action" mapstructure:"unknown_action" validate:"required,oneof=pending deny"`
}

// SecurityConfig selects a monitor preset and any overrides.
type SecurityConfig struct {
	// Preset is one of monitor.ValidPresetNames (minimal, standard, paranoid).
	Preset string `yaml:"preset" mapstructure:"preset" validate:"required,oneof=minimal standard paranoid"`

	// Overrides flips individual SecurityProfile fields relative to Preset.
	// An unknown key is a validation error, not a silently ignored typo.
	Overrides map[string]bool `yaml:"overrides" mapstructure:"overrides"`

	// CPULimit overrides the preset's ResourceProfile.CPULimit (e.g. "1.5").
	CPULimit string `yaml:"cpu_limit" mapstructure:"cpu_limit"`
	// MemoryLimit overrides the preset's ResourceProfile.MemoryLimit (e.g. "512m").
	MemoryLimit string `yaml:"memory_limit" mapstructure:"memory_limit"`
	// PIDsLimit overrides the preset's ResourceProfile.PIDsLimit. Zero means
	// "use the preset default".
	PIDsLimit int `yaml:"pids_limit" mapstructure:"pids_limit"`
}

// ActionGateConfig configures the human-in-the-loop approval gate.
type ActionGateConfig struct {
	// TimeoutSeconds bounds how long a PENDING decision waits for a human
	// response before it is treated as a deny. Zero uses actiongate.DefaultTimeout.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"omitempty,min=1"`
}

// AdminConfig configures the loopback approval API.
type AdminConfig struct {
	// Addr is the host:port the approval API listens on.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
}

// AlertsConfig selects which alert sinks CrabPot feeds.
type AlertsConfig struct {
	// LogFile is the path to a JSONL alert log. Empty disables the sink.
	LogFile string `yaml:"log_file" mapstructure:"log_file"`
	// Stderr enables the severity-colored terminal sink.
	Stderr bool `yaml:"stderr" mapstructure:"stderr"`
	// WebSocketAddr, if set, enables the websocket fan-out sink. The sink is
	// served at /alerts/ws on Admin.Addr; this address is not listened on.
	WebSocketAddr string `yaml:"websocket_addr" mapstructure:"websocket_addr" validate:"omitempty,hostname_port"`
	// DesktopNotify enables sanitized OS notifications on CRITICAL alerts.
	DesktopNotify bool `yaml:"desktop_notify" mapstructure:"desktop_notify"`
}

// SetDefaults fills in zero-valued optional fields.
func (c *Config) SetDefaults() {
	if c.Proxy.Addr == "" {
		c.Proxy.Addr = "127.0.0.1:8899"
	}
	if c.Runtime.Kind == "" {
		c.Runtime.Kind = "docker"
	}
	if c.Runtime.ContainerName == "" {
		c.Runtime.ContainerName = "crabpot-sandbox"
	}
	if c.Security.Preset == "" {
		c.Security.Preset = "standard"
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = "127.0.0.1:8898"
	}
	if c.Policy.UnknownAction == "" {
		c.Policy.UnknownAction = "pending"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TracingExporter == "" {
		c.TracingExporter = "none"
	}
	if !c.Alerts.Stderr && c.Alerts.LogFile == "" && c.Alerts.WebSocketAddr == "" {
		c.Alerts.Stderr = true
	}
}

// SetDevDefaults relaxes fields for local development when DevMode is set.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Security.Preset == "" {
		c.Security.Preset = "minimal"
	}
}

// ValidPresetNames re-exports monitor.ValidPresetNames for CLI flag help,
// so cmd/crabpot does not need to import internal/domain/monitor directly
// just to print usage text.
var ValidPresetNames = monitor.ValidPresetNames
