package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for crabpot.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("crabpot")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: CRABPOT_PROXY_ADDR
	viper.SetEnvPrefix("CRABPOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a crabpot config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".crabpot"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "crabpot"))
		}
	} else {
		paths = append(paths, "/etc/crabpot")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for crabpot.yaml or
// .yml, returning the full path of the first match.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "crabpot"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds config keys for environment variable support.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("proxy.addr")
	_ = viper.BindEnv("runtime.kind")
	_ = viper.BindEnv("runtime.container_name")
	_ = viper.BindEnv("runtime.config_dir")
	_ = viper.BindEnv("policy.allowlist_file")
	_ = viper.BindEnv("policy.unknown_action")
	_ = viper.BindEnv("security.preset")
	_ = viper.BindEnv("security.cpu_limit")
	_ = viper.BindEnv("security.memory_limit")
	_ = viper.BindEnv("security.pids_limit")
	_ = viper.BindEnv("action_gate.timeout_seconds")
	_ = viper.BindEnv("admin.addr")
	_ = viper.BindEnv("alerts.log_file")
	_ = viper.BindEnv("alerts.stderr")
	_ = viper.BindEnv("alerts.websocket_addr")
	_ = viper.BindEnv("alerts.desktop_notify")
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("tracing_exporter")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate. Use this when CLI flags may override
// DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or empty if none was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
