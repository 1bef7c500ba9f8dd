package alert

import (
	"log/slog"
	"sync"
	"time"
)

const (
	maxHistory  = 1000
	trimHistory = 500
)

// Bus distributes alerts to every attached Sink and keeps a bounded
// in-memory history. History mutation is under lock; sinks are always
// invoked after the lock is released, so a slow or misbehaving sink can
// never block a concurrent Fire from recording its history entry.
type Bus struct {
	mu      sync.Mutex
	history []Alert

	sinks []Sink
	log   *slog.Logger
}

// NewBus constructs a Bus with the given sinks attached at startup. More
// sinks can be attached later with Attach.
func NewBus(log *slog.Logger, sinks ...Sink) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{sinks: append([]Sink(nil), sinks...), log: log}
}

// Attach adds a sink to the bus. Not safe to call concurrently with Fire.
func (b *Bus) Attach(s Sink) {
	b.sinks = append(b.sinks, s)
}

// SeedHistory preloads history reloaded from a persisted alert log,
// trimmed to the same bound Fire enforces. Intended to run once, right
// after construction and before any Fire call; it overwrites rather than
// appends.
func (b *Bus) SeedHistory(history []Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(history) > maxHistory {
		history = history[len(history)-trimHistory:]
	}
	b.history = append([]Alert(nil), history...)
}

// Fire records an alert and dispatches it to every sink. The severity,
// source, and message fields are the sink-facing surface; timestamps are
// stamped here.
func (b *Bus) Fire(severity Severity, source, message string) Alert {
	now := time.Now()
	a := Alert{
		Severity:      severity,
		Source:        source,
		Message:       message,
		Timestamp:     now.Format("15:04:05"),
		TimestampFull: now,
	}

	b.mu.Lock()
	b.history = append(b.history, a)
	if len(b.history) > maxHistory {
		b.history = append([]Alert(nil), b.history[len(b.history)-trimHistory:]...)
	}
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.Unlock()

	for _, s := range sinks {
		b.dispatch(s, a)
	}

	return a
}

// dispatch invokes one sink, recovering a panic so one broken sink never
// takes down the alert path for the rest.
func (b *Bus) dispatch(s Sink, a Alert) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("alert sink panicked", "sink", sinkName(s), "panic", r)
		}
	}()
	s.Accept(a)
}

// PushStats forwards a stats snapshot to every sink that implements
// StatsSink, outside the history lock, same as Fire.
func (b *Bus) PushStats(stats Stats) {
	b.mu.Lock()
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.Unlock()

	for _, s := range sinks {
		if ss, ok := s.(StatsSink); ok {
			b.dispatchStats(ss, stats)
		}
	}
}

func (b *Bus) dispatchStats(s StatsSink, stats Stats) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("stats sink panicked", "panic", r)
		}
	}()
	s.AcceptStats(stats)
}

// GetHistory returns the last n alerts, oldest first, optionally filtered
// to a single severity. A zero or negative n returns the full (bounded)
// history.
func (b *Bus) GetHistory(n int, severity Severity) []Alert {
	b.mu.Lock()
	snapshot := append([]Alert(nil), b.history...)
	b.mu.Unlock()

	if severity != "" {
		filtered := snapshot[:0:0]
		for _, a := range snapshot {
			if a.Severity == severity {
				filtered = append(filtered, a)
			}
		}
		snapshot = filtered
	}

	if n <= 0 || n >= len(snapshot) {
		return snapshot
	}
	return snapshot[len(snapshot)-n:]
}

// GetAlertCounts returns the number of recorded alerts per severity.
func (b *Bus) GetAlertCounts() map[Severity]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[Severity]int, 3)
	for _, a := range b.history {
		counts[a.Severity]++
	}
	return counts
}

func sinkName(s Sink) string {
	type named interface{ Name() string }
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return "sink"
}
