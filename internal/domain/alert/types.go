// Package alert implements CrabPot's security event bus: a severity-tagged
// alert distributor with bounded history and pluggable sinks.
package alert

import "time"

// Severity classifies how urgently an alert needs a human's attention.
type Severity string

const (
	// Info is routine, expected activity worth a record but no reaction.
	Info Severity = "INFO"
	// Warning is activity that warrants a look but isn't an active threat.
	Warning Severity = "WARNING"
	// Critical is activity serious enough to trigger the auto-pause reflex.
	Critical Severity = "CRITICAL"
)

// Alert is a single security event posted to the bus.
type Alert struct {
	Severity      Severity  `json:"severity"`
	Source        string    `json:"source"`
	Message       string    `json:"message"`
	Timestamp     string    `json:"timestamp"`      // HH:MM:SS, for terminal/toast display
	TimestampFull time.Time `json:"timestamp_full"` // full precision, for JSONL/WS consumers
}

// Stats is a point-in-time resource snapshot pushed to stats-aware sinks
// (currently the WS fan-out and metrics sinks) outside the alert history.
type Stats struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sink receives alerts and stats pushed through a Bus. Implementations must
// not block the caller for long and must never panic — Bus recovers
// individual sink panics but a sink that blocks stalls every other sink
// fired in the same call.
type Sink interface {
	Accept(Alert)
}

// StatsSink is implemented by sinks that also want stats pushes (currently
// the WS fan-out and metrics sinks; file/stderr/notification sinks ignore
// stats).
type StatsSink interface {
	AcceptStats(Stats)
}
