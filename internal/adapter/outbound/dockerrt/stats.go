package dockerrt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// dockerStatsJSON mirrors the subset of the Docker stats API response
// _parse_stats reads from: cpu usage deltas, memory usage/limit, and the
// PID count.
type dockerStatsJSON struct {
	CPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
		OnlineCPUs     uint64 `json:"online_cpus"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
	PidsStats struct {
		Current int `json:"current"`
	} `json:"pids_stats"`
}

// StatsSnapshot takes a single non-streaming stats reading and computes the
// CPU/memory percentages the same way the reference manager's
// _parse_stats does: CPU from the cpu/system usage delta ratio scaled by
// online CPU count, memory from usage/limit.
func (r *Runtime) StatsSnapshot(ctx context.Context) (runtime.Stats, error) {
	resp, err := r.cli.ContainerStats(ctx, r.containerName, false)
	if err != nil {
		return runtime.Stats{}, runtime.NewTransientError(fmt.Errorf("container stats: %w", err))
	}
	defer resp.Body.Close()

	var raw dockerStatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return runtime.Stats{}, fmt.Errorf("decode stats: %w", err)
	}

	return parseStats(raw), nil
}

func parseStats(raw dockerStatsJSON) runtime.Stats {
	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemCPUUsage) - float64(raw.PreCPUStats.SystemCPUUsage)
	onlineCPUs := raw.CPUStats.OnlineCPUs
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}

	var cpuPercent float64
	if systemDelta > 0 {
		cpuPercent = (cpuDelta / systemDelta) * float64(onlineCPUs) * 100.0
	}

	var memPercent float64
	if raw.MemoryStats.Limit > 0 {
		memPercent = (float64(raw.MemoryStats.Usage) / float64(raw.MemoryStats.Limit)) * 100.0
	}

	return runtime.Stats{
		CPUPercent:    round1(cpuPercent),
		MemoryPercent: round1(memPercent),
		MemoryUsedMB:  round1(float64(raw.MemoryStats.Usage) / (1024 * 1024)),
		PIDs:          raw.PidsStats.Current,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
