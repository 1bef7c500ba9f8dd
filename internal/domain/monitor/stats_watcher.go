package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// watchStats polls CPU/memory usage every 2s, pushing every snapshot to the
// alert bus's stats channel and firing a threshold alert when CPU stays
// above cpuThreshold for cpuSustainSeconds or memory crosses
// memoryThreshold (subject to memoryAlertCooldown).
func (m *Monitor) watchStats(ctx context.Context) {
	for ctx.Err() == nil {
		if m.isPaused() {
			if sleepInterruptible(ctx, 2*time.Second) {
				return
			}
			continue
		}

		stats, err := m.rt.StatsSnapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if runtime.IsTransient(err) {
				m.log.Debug("stats watcher transient error", "error", err)
			} else {
				m.alerts.Fire(alert.Warning, "monitor", "stats watcher error: "+err.Error())
			}
			if sleepInterruptible(ctx, 2*time.Second) {
				return
			}
			continue
		}

		m.setLatestStats(stats)
		m.alerts.PushStats(alert.Stats{
			CPUPercent:    stats.CPUPercent,
			MemoryPercent: stats.MemoryPercent,
			Timestamp:     time.Now(),
		})

		m.checkCPUThreshold(stats)
		m.checkMemoryThreshold(stats)

		if sleepInterruptible(ctx, 2*time.Second) {
			return
		}
	}
}

func (m *Monitor) checkCPUThreshold(stats runtime.Stats) {
	now := time.Now()
	if stats.CPUPercent > m.cpuThreshold {
		if !m.hasCPUHighSince {
			m.cpuHighSince = now
			m.hasCPUHighSince = true
			return
		}
		if now.Sub(m.cpuHighSince) >= m.cpuSustainSeconds {
			m.alerts.Fire(alert.Warning, "stats", fmt.Sprintf("CPU at %.1f%% for %s", stats.CPUPercent, m.cpuSustainSeconds))
			m.cpuHighSince = now
		}
		return
	}
	m.hasCPUHighSince = false
}

func (m *Monitor) checkMemoryThreshold(stats runtime.Stats) {
	if stats.MemoryPercent <= m.memoryThreshold {
		return
	}
	now := time.Now()
	if now.Sub(m.lastMemoryAlert) < memoryAlertCooldown {
		return
	}
	m.alerts.Fire(alert.Warning, "stats", fmt.Sprintf("memory at %.1f%% (%.0fMB)", stats.MemoryPercent, stats.MemoryUsedMB))
	m.lastMemoryAlert = now
}
