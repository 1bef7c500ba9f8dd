package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// whitelistedNetworkAddrs never trigger a new-connection alert: loopback
// and unspecified-address binds are expected noise from the container's
// own listeners.
var whitelistedNetworkAddrs = map[string]bool{
	"127.0.0.1": true, "0.0.0.0": true, "::1": true, "::": true,
}

// watchNetwork audits established outbound connections every 30s via
// `ss -tunp` inside the container, alerting once per newly observed remote
// endpoint.
func (m *Monitor) watchNetwork(ctx context.Context) {
	seenRemotes := make(map[string]bool)

	for ctx.Err() == nil {
		if m.isPaused() {
			if sleepInterruptible(ctx, 30*time.Second) {
				return
			}
			continue
		}

		status, err := m.rt.Status(ctx)
		if err != nil || status != runtime.StatusRunning {
			if ctx.Err() != nil {
				return
			}
			if sleepInterruptible(ctx, 30*time.Second) {
				return
			}
			continue
		}

		output, err := m.rt.Exec(ctx, "ss -tunp")
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if runtime.IsTransient(err) {
				m.log.Debug("network watcher transient error", "error", err)
			} else {
				m.alerts.Fire(alert.Warning, "monitor", "network watcher error: "+err.Error())
			}
			if sleepInterruptible(ctx, 30*time.Second) {
				return
			}
			continue
		}

		lines := strings.Split(output, "\n")
		if len(lines) > 0 {
			lines = lines[1:]
		}
		for _, line := range lines {
			parts := strings.Fields(line)
			// Netid State Recv-Q Send-Q Local:Port Peer:Port [Process]
			if len(parts) < 6 {
				continue
			}
			remote := parts[5]
			addr := remote
			if idx := strings.LastIndex(remote, ":"); idx >= 0 {
				addr = remote[:idx]
			}
			addr = strings.Trim(addr, "[]")

			if whitelistedNetworkAddrs[addr] || addr == "*" || seenRemotes[remote] {
				continue
			}
			seenRemotes[remote] = true
			m.alerts.Fire(alert.Warning, "network", "new outbound connection to "+remote)
		}

		if sleepInterruptible(ctx, 30*time.Second) {
			return
		}
	}
}
