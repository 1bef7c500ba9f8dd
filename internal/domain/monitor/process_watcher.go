package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// suspiciousProcesses are process names that should never run inside the
// sandbox — shells, interpreters, compilers, and common recon/exfiltration
// tools.
var suspiciousProcesses = map[string]bool{
	"sh": true, "bash": true, "dash": true, "zsh": true, "fish": true,
	"csh": true, "tcsh": true,
	"python": true, "python3": true, "perl": true, "ruby": true, "php": true, "lua": true,
	"nc": true, "ncat": true, "nmap": true, "socat": true, "telnet": true,
	"gcc": true, "cc": true, "make": true, "ld": true,
}

// watchProcesses polls the container's process table every 15s for
// suspicious process names, firing CRITICAL and auto-pausing on a hit.
func (m *Monitor) watchProcesses(ctx context.Context) {
	for ctx.Err() == nil {
		if m.isPaused() {
			if sleepInterruptible(ctx, 15*time.Second) {
				return
			}
			continue
		}

		entries, err := m.rt.Top(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if runtime.IsTransient(err) {
				m.log.Debug("process watcher transient error", "error", err)
			} else {
				m.alerts.Fire(alert.Warning, "monitor", "process watcher error: "+err.Error())
			}
			if sleepInterruptible(ctx, 15*time.Second) {
				return
			}
			continue
		}

		for _, entry := range entries {
			base := baseCommand(entry.Command)
			if suspiciousProcesses[base] {
				m.alerts.Fire(alert.Critical, "processes", "suspicious process detected: "+entry.Command)
				m.autoPause(ctx, "suspicious process: "+base)
			}
		}

		if sleepInterruptible(ctx, 15*time.Second) {
			return
		}
	}
}

// baseCommand extracts the executable name from a full command line, e.g.
// "/usr/bin/python3 -m http.server" -> "python3".
func baseCommand(cmd string) string {
	if cmd == "" {
		return ""
	}
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	first := fields[0]
	if idx := strings.LastIndex(first, "/"); idx >= 0 {
		first = first[idx+1:]
	}
	return first
}
