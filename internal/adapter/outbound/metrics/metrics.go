// Package metrics exposes CrabPot's Prometheus metrics, fed by attaching a
// *Sink to the alert bus as both an alert.Sink and an alert.StatsSink.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
)

// Sink holds CrabPot's Prometheus metrics and implements alert.Sink /
// alert.StatsSink so it can be attached to the bus directly, without a
// separate registration step.
type Sink struct {
	AlertsTotal      *prometheus.CounterVec
	CriticalsTotal   prometheus.Counter
	AutoPausesTotal  prometheus.Counter
	CPUPercent       prometheus.Gauge
	MemoryPercent    prometheus.Gauge
	EgressDecisions  *prometheus.CounterVec
	PendingApprovals prometheus.Gauge
}

// New creates and registers every metric with reg.
func New(reg prometheus.Registerer) *Sink {
	return &Sink{
		AlertsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crabpot",
				Name:      "alerts_total",
				Help:      "Total number of security alerts fired, by severity.",
			},
			[]string{"severity"},
		),
		CriticalsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "crabpot",
				Name:      "critical_alerts_total",
				Help:      "Total number of CRITICAL security alerts fired.",
			},
		),
		AutoPausesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "crabpot",
				Name:      "auto_pauses_total",
				Help:      "Total number of times the sandbox was auto-paused on a CRITICAL finding.",
			},
		),
		CPUPercent: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "crabpot",
				Name:      "sandbox_cpu_percent",
				Help:      "Most recently observed sandbox container CPU usage percent.",
			},
		),
		MemoryPercent: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "crabpot",
				Name:      "sandbox_memory_percent",
				Help:      "Most recently observed sandbox container memory usage percent.",
			},
		),
		EgressDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crabpot",
				Name:      "egress_decisions_total",
				Help:      "Total egress admission decisions, by outcome.",
			},
			[]string{"decision"},
		),
		PendingApprovals: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "crabpot",
				Name:      "pending_approvals",
				Help:      "Number of egress requests currently awaiting human approval.",
			},
		),
	}
}

// Accept implements alert.Sink.
func (s *Sink) Accept(a alert.Alert) {
	s.AlertsTotal.WithLabelValues(string(a.Severity)).Inc()
	if a.Severity == alert.Critical {
		s.CriticalsTotal.Inc()
	}
	if a.Source == "auto-pause" && a.Severity == alert.Critical {
		s.AutoPausesTotal.Inc()
	}
}

// AcceptStats implements alert.StatsSink.
func (s *Sink) AcceptStats(stats alert.Stats) {
	s.CPUPercent.Set(stats.CPUPercent)
	s.MemoryPercent.Set(stats.MemoryPercent)
}

// RecordDecision increments the egress decision counter for decision
// ("allow", "deny", "allow_after_review", "deny_after_review").
func (s *Sink) RecordDecision(decision string) {
	s.EgressDecisions.WithLabelValues(decision).Inc()
}

// SetPendingApprovals records the action gate's current pending count.
func (s *Sink) SetPendingApprovals(n int) {
	s.PendingApprovals.Set(float64(n))
}

var _ alert.Sink = (*Sink)(nil)
var _ alert.StatsSink = (*Sink)(nil)
