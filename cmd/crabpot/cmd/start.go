package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/crabpot-sandbox/crabpot/internal/adapter/inbound/adminapi"
	"github.com/crabpot-sandbox/crabpot/internal/adapter/outbound/alertsinks"
	"github.com/crabpot-sandbox/crabpot/internal/adapter/outbound/dockerrt"
	"github.com/crabpot-sandbox/crabpot/internal/adapter/outbound/metrics"
	"github.com/crabpot-sandbox/crabpot/internal/adapter/outbound/policystore"
	"github.com/crabpot-sandbox/crabpot/internal/config"
	"github.com/crabpot-sandbox/crabpot/internal/domain/actiongate"
	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/egress"
	"github.com/crabpot-sandbox/crabpot/internal/domain/monitor"
	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
	"github.com/crabpot-sandbox/crabpot/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sandbox, egress proxy, action gate, and monitor",
	Long: `Start brings up the sandboxed container (building and starting it if
necessary), the egress HTTP/HTTPS proxy, the human-approval action gate,
and the security monitor, and blocks until interrupted.

Examples:
  # Start with config file settings
  crabpot start

  # Start with a specific config file
  crabpot --config /path/to/crabpot.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, relaxed preset)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default signal handling: next Ctrl+C is an immediate exit.
	}()

	logger := telemetry.NewLogger(cfg.LogLevel, cfg.DevMode)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("crabpot stopped")
	return nil
}

// run wires every component together and blocks until ctx is canceled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	securityProfile, _, err := cfg.ResolveProfile()
	if err != nil {
		return fmt.Errorf("failed to resolve security profile: %w", err)
	}

	tracer, err := telemetry.NewTracer(cfg.TracingExporter)
	if err != nil {
		return fmt.Errorf("failed to build tracer: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	metricsSink := metrics.New(reg)

	sinks := []alert.Sink{metricsSink}
	if cfg.Alerts.Stderr {
		sinks = append(sinks, alertsinks.NewStderrSink())
	}
	if cfg.Alerts.LogFile != "" {
		fileSink, err := alertsinks.NewFileSink(cfg.Alerts.LogFile, logger)
		if err != nil {
			return fmt.Errorf("failed to open alert log file: %w", err)
		}
		sinks = append(sinks, fileSink)
	}
	if cfg.Alerts.DesktopNotify {
		sinks = append(sinks, alertsinks.NewNotifySink(logger))
	}
	var wsSink *alertsinks.WSSink
	if cfg.Alerts.WebSocketAddr != "" {
		wsSink = alertsinks.NewWSSink(logger)
		sinks = append(sinks, wsSink)
	}

	alertBus := alert.NewBus(logger, sinks...)
	if cfg.Alerts.LogFile != "" {
		history, err := alertsinks.LoadHistory(cfg.Alerts.LogFile)
		if err != nil {
			logger.Warn("failed to reload alert history", "error", err)
		} else {
			alertBus.SeedHistory(history)
		}
	}

	allowlistPath := policystore.ResolvePath(cfg.Policy.AllowlistFile)
	store := policystore.NewFileStore(allowlistPath, logger)
	initialAllowed, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load allowlist: %w", err)
	}
	extraBlocked, err := store.LoadBlockedExtras()
	if err != nil {
		return fmt.Errorf("failed to load blocklist extras: %w", err)
	}

	unknownAction := policy.UnknownPending
	if cfg.Policy.UnknownAction == "deny" {
		unknownAction = policy.UnknownDeny
	}
	policyEngine := policy.New(initialAllowed, extraBlocked, unknownAction, store, logger)

	gateTimeout := actiongate.DefaultTimeout
	if cfg.ActionGate.TimeoutSeconds > 0 {
		gateTimeout = time.Duration(cfg.ActionGate.TimeoutSeconds) * time.Second
	}
	gate := actiongate.New(policyEngine, alertBus, gateTimeout, logger)
	gate.SetTracer(tracer)

	rt, err := dockerrt.New(cfg.Runtime.ContainerName, cfg.Runtime.ConfigDir, logger)
	if err != nil {
		return fmt.Errorf("failed to construct container runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	if err := rt.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up sandbox: %w", err)
	}
	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sandbox: %w", err)
	}

	sandboxMonitor := monitor.New(rt, alertBus, securityProfile, logger)
	sandboxMonitor.Start(ctx)
	defer sandboxMonitor.Stop()

	proxy := egress.New(cfg.Proxy.Addr, policyEngine, gate, alertBus, logger)
	proxy.SetTracer(tracer)
	if err := proxy.Start(); err != nil {
		return fmt.Errorf("failed to start egress proxy: %w", err)
	}
	defer func() { _ = proxy.Stop() }()

	adminHandler := adminapi.New(gate, logger)
	adminMux := stdhttp.NewServeMux()
	adminMux.Handle("/", adminHandler.Mux())
	adminMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if wsSink != nil {
		adminMux.Handle("/alerts/ws", wsSink)
	}
	adminServer := &stdhttp.Server{Addr: cfg.Admin.Addr, Handler: adminMux}
	go func() {
		logger.Info("approval API listening", "addr", cfg.Admin.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			logger.Error("approval API serve error", "error", err)
		}
	}()

	logger.Info("crabpot started",
		"proxy_addr", cfg.Proxy.Addr,
		"admin_addr", cfg.Admin.Addr,
		"security_preset", cfg.Security.Preset,
		"container", cfg.Runtime.ContainerName,
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("approval API graceful shutdown incomplete", "error", err)
	}

	return nil
}
