package monitor

import (
	"context"
	"strconv"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// watchHealth polls the runtime's healthcheck status every 30s, firing
// CRITICAL and auto-pausing after two consecutive unhealthy checks.
func (m *Monitor) watchHealth(ctx context.Context) {
	for ctx.Err() == nil {
		if m.isPaused() {
			if sleepInterruptible(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if stop := m.checkHealthOnce(ctx); stop {
			return
		}

		if sleepInterruptible(ctx, 30*time.Second) {
			return
		}
	}
}

// checkHealthOnce runs a single health poll/classify cycle. It reports
// whether the caller should stop (context already canceled).
func (m *Monitor) checkHealthOnce(ctx context.Context) bool {
	health, err := m.rt.Health(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if runtime.IsTransient(err) {
			m.log.Debug("health watcher transient error", "error", err)
		} else {
			m.alerts.Fire(alert.Warning, "monitor", "health watcher error: "+err.Error())
		}
		return false
	}

	if health != "unhealthy" {
		m.consecutiveUnhealthy = 0
		return false
	}

	m.consecutiveUnhealthy++
	if m.consecutiveUnhealthy >= 2 {
		count := m.consecutiveUnhealthy
		m.alerts.Fire(alert.Critical, "health", "container unhealthy ("+strconv.Itoa(count)+" consecutive checks)")
		m.autoPause(ctx, "container unhealthy")
	}
	return false
}
