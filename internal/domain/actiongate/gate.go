// Package actiongate blocks proxy goroutines on human approval for domains
// the policy engine cannot classify, coalescing concurrent requests for the
// same domain onto a single pending entry.
package actiongate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/telemetry"
)

// DefaultTimeout is how long RequestApproval waits for a human verdict
// before treating the request as denied.
const DefaultTimeout = 60 * time.Second

// DefaultMaxHistory bounds the decision history kept for inspection.
const DefaultMaxHistory = 50

// PolicyMutator is the subset of the policy engine the gate mutates once a
// human renders a verdict.
type PolicyMutator interface {
	AddPermanent(domain string)
	SessionApprove(domain string)
	SessionDeny(domain string)
}

// pendingRequest is a domain's single live approval request. At most one
// exists per domain at any instant; every waiter blocked on it receives the
// same verdict exactly once via the buffered result channel.
type pendingRequest struct {
	domain    string
	port      int
	createdAt time.Time
	result    chan bool // buffered, size 1; true = approved
}

// HistoryEntry records a resolved approval decision.
type HistoryEntry struct {
	ID        string
	Domain    string
	Port      int
	Decision  string // "approved", "denied", "timed_out"
	Timestamp time.Time
}

// Gate is the human-in-the-loop action gate. It holds one lock covering the
// pending map and the history slice; it never holds that lock while calling
// into PolicyMutator or AlertBus — mutate under lock, release, then notify.
type Gate struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	history []HistoryEntry

	timeout    time.Duration
	maxHistory int

	policy PolicyMutator
	alerts *alert.Bus
	log    *slog.Logger
	tracer *telemetry.Tracer
}

// SetTracer attaches a Tracer so every wait on a human verdict spans
// "actiongate.wait". A nil or disabled Tracer is a no-op at the call site.
func (g *Gate) SetTracer(t *telemetry.Tracer) {
	g.tracer = t
}

// New constructs a Gate with the given approval timeout. A zero timeout
// defaults to DefaultTimeout.
func New(policyMutator PolicyMutator, alerts *alert.Bus, timeout time.Duration, log *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		pending:    make(map[string]*pendingRequest),
		timeout:    timeout,
		maxHistory: DefaultMaxHistory,
		policy:     policyMutator,
		alerts:     alerts,
		log:        log,
	}
}

// RequestApproval blocks the calling goroutine until a human approves or
// denies domain, or the timeout elapses (treated as a denial). Concurrent
// calls for the same domain coalesce onto the same pendingRequest and
// receive the same verdict.
func (g *Gate) RequestApproval(domain string, port int) bool {
	if g.tracer != nil && g.tracer.Enabled() {
		_, span := g.tracer.StartGateWaitSpan(context.Background(), domain)
		approved := g.requestApproval(domain, port)
		g.tracer.EndGateWaitSpan(span, approved)
		return approved
	}
	return g.requestApproval(domain, port)
}

// requestApproval is the actual wait logic, factored out so
// RequestApproval can wrap it in a span without duplicating it.
func (g *Gate) requestApproval(domain string, port int) bool {
	g.mu.Lock()
	req, existing := g.pending[domain]
	if !existing {
		req = &pendingRequest{
			domain:    domain,
			port:      port,
			createdAt: time.Now(),
			result:    make(chan bool, 1),
		}
		g.pending[domain] = req
	}
	g.mu.Unlock()

	if !existing {
		g.alerts.Fire(alert.Warning, "action-gate", "approval needed for "+domain)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var approved bool
	var decision string
	select {
	case approved = <-req.result:
		// Hand the verdict on to the next coalesced waiter on this request.
		select {
		case req.result <- approved:
		default:
		}
		if approved {
			decision = "approved"
		} else {
			decision = "denied"
		}
	case <-timer.C:
		approved = false
		decision = "timed_out"
	}

	g.mu.Lock()
	if g.pending[domain] == req {
		delete(g.pending, domain)
	}
	g.history = append(g.history, HistoryEntry{
		ID:        uuid.NewString(),
		Domain:    domain,
		Port:      port,
		Decision:  decision,
		Timestamp: time.Now(),
	})
	if len(g.history) > g.maxHistory {
		g.history = append([]HistoryEntry(nil), g.history[len(g.history)-g.maxHistory:]...)
	}
	g.mu.Unlock()

	if approved {
		g.alerts.Fire(alert.Info, "action-gate", domain+" approved")
	} else {
		g.alerts.Fire(alert.Warning, "action-gate", domain+" denied")
	}

	return approved
}

// Approve renders a positive verdict for domain. When permanent is true the
// domain is added to the durable allowlist; otherwise it is only approved
// for the remainder of the process session. Returns whether a pending
// request was actually live to receive the signal — a later Approve call
// for an already-resolved domain still mutates policy state but is a no-op
// on the pending set.
func (g *Gate) Approve(domain string, permanent bool) bool {
	if permanent {
		g.policy.AddPermanent(domain)
	} else {
		g.policy.SessionApprove(domain)
	}
	return g.signal(domain, true)
}

// Deny renders a negative verdict for domain, session-denying it in the
// policy engine and signaling any live pending request.
func (g *Gate) Deny(domain string) bool {
	g.policy.SessionDeny(domain)
	return g.signal(domain, false)
}

func (g *Gate) signal(domain string, verdict bool) bool {
	g.mu.Lock()
	req, ok := g.pending[domain]
	g.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case req.result <- verdict:
	default:
		// Already signaled by a racing Approve/Deny or a concurrent timeout.
	}
	return true
}

// GetPending returns a snapshot of domains currently awaiting a verdict.
func (g *Gate) GetPending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.pending))
	for d := range g.pending {
		out = append(out, d)
	}
	return out
}

// GetHistory returns the last n resolved decisions, oldest first. A zero or
// negative n returns the full (bounded) history.
func (g *Gate) GetHistory(n int) []HistoryEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n <= 0 || n >= len(g.history) {
		return append([]HistoryEntry(nil), g.history...)
	}
	return append([]HistoryEntry(nil), g.history[len(g.history)-n:]...)
}
