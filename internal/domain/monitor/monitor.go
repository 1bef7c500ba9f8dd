// Package monitor implements CrabPot's conditional real-time security
// monitor: a set of independently-enabled watcher goroutines, each
// reporting to the shared alert bus and able to trigger the auto-pause
// reflex on a CRITICAL finding.
package monitor

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// memoryAlertCooldown bounds how often the stats watcher re-fires a memory
// alert for a sustained high-memory condition.
const memoryAlertCooldown = 60 * time.Second

// Monitor runs the watcher channels selected by a SecurityProfile. Each
// enabled channel is its own goroutine; Stop cancels all of them and waits
// (bounded) for them to return.
type Monitor struct {
	rt     runtime.Runtime
	alerts *alert.Bus
	log    *slog.Logger

	profile           SecurityProfile
	cpuThreshold      float64
	memoryThreshold   float64
	cpuSustainSeconds time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	paused atomic.Bool

	statsMu     sync.Mutex
	latestStats runtime.Stats
	hasStats    bool

	cpuHighSince    time.Time
	hasCPUHighSince bool
	lastMemoryAlert time.Time

	consecutiveUnhealthy int
}

// Option configures a Monitor at construction.
type Option func(*Monitor)

// WithThresholds overrides the default CPU/memory alert thresholds (percent)
// and the sustained-CPU window before a WARNING fires.
func WithThresholds(cpuPercent, memoryPercent float64, cpuSustain time.Duration) Option {
	return func(m *Monitor) {
		m.cpuThreshold = cpuPercent
		m.memoryThreshold = memoryPercent
		m.cpuSustainSeconds = cpuSustain
	}
}

// New builds a Monitor. profile selects which watcher channels Start spawns.
func New(rt runtime.Runtime, alerts *alert.Bus, profile SecurityProfile, log *slog.Logger, opts ...Option) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	m := &Monitor{
		rt:                rt,
		alerts:            alerts,
		log:               log,
		profile:           profile,
		cpuThreshold:      80.0,
		memoryThreshold:   85.0,
		cpuSustainSeconds: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type watcher struct {
	name string
	run  func(ctx context.Context)
}

// spawn runs w in its own goroutine. A panic in one watcher is recovered
// and reported rather than taking the whole monitor (and process) down —
// the Go analogue of the reference implementation's per-thread try/except.
func (m *Monitor) spawn(ctx context.Context, w watcher) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("watcher panicked", "channel", w.name, "panic", r)
				m.alerts.Fire(alert.Warning, "monitor", w.name+" watcher crashed and stopped")
			}
		}()
		m.log.Debug("watcher started", "channel", w.name)
		w.run(ctx)
		m.log.Debug("watcher stopped", "channel", w.name)
	}()
}

// Start spawns the watcher channels selected by the security profile. health
// and events always run alongside any other enabled channel. Calling Start
// twice without an intervening Stop is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	var watchers []watcher
	if m.profile.ResourceLimits {
		watchers = append(watchers, watcher{"stats", m.watchStats})
	}
	if m.profile.ProcessWatchdog {
		watchers = append(watchers, watcher{"processes", m.watchProcesses})
	}
	if m.profile.NetworkAuditor {
		watchers = append(watchers, watcher{"network", m.watchNetwork})
	}
	if m.profile.LogScanner {
		watchers = append(watchers, watcher{"logs", m.watchLogs})
	}
	if len(watchers) > 0 {
		watchers = append(watchers, watcher{"health", m.watchHealth})
		watchers = append(watchers, watcher{"events", m.watchEvents})
	}

	for _, w := range watchers {
		m.spawn(runCtx, w)
	}

	m.running = len(watchers) > 0
	if len(watchers) > 0 {
		m.alerts.Fire(alert.Info, "monitor", "security monitor started ("+strconv.Itoa(len(watchers))+" channels)")
	}
}

// Stop cancels every watcher and waits up to 5s for them to return.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.running = false
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.log.Warn("monitor watchers did not exit within grace period")
	}
}

// PauseMonitoring suspends polling-based watchers; streaming watchers
// (logs, events) keep running since they block on the runtime rather than
// poll it.
func (m *Monitor) PauseMonitoring() { m.paused.Store(true) }

// ResumeMonitoring resumes polling-based watchers.
func (m *Monitor) ResumeMonitoring() { m.paused.Store(false) }

func (m *Monitor) isPaused() bool { return m.paused.Load() }

// GetLatestStats returns the most recently collected stats snapshot, if any.
func (m *Monitor) GetLatestStats() (runtime.Stats, bool) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.latestStats, m.hasStats
}

func (m *Monitor) setLatestStats(s runtime.Stats) {
	m.statsMu.Lock()
	m.latestStats = s
	m.hasStats = true
	m.statsMu.Unlock()
}

// sleepInterruptible sleeps for d or until ctx is canceled, whichever comes
// first. It reports whether ctx was the reason it returned.
func sleepInterruptible(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}

// autoPause freezes the workload on a CRITICAL finding, if the profile
// enables it.
func (m *Monitor) autoPause(ctx context.Context, reason string) {
	if !m.profile.AutoPauseOnCritical {
		return
	}
	if err := m.rt.Pause(ctx); err != nil {
		m.alerts.Fire(alert.Warning, "auto-pause", "failed to auto-pause: "+err.Error())
		return
	}
	m.alerts.Fire(alert.Critical, "auto-pause", "container auto-frozen: "+reason)
}
