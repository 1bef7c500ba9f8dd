package egress

import (
	"context"

	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
)

// enforce runs the shared admission check every CONNECT and forward-request
// path goes through: classify the domain, log the attempt, and — if the
// engine returned PENDING and an action gate is attached — block on human
// approval before returning the final verdict.
func (p *Proxy) enforce(host string, port int, method string) policy.Decision {
	if p.tracer != nil && p.tracer.Enabled() {
		_, sp := p.tracer.StartEnforceSpan(context.Background(), host, port)
		decision := p.enforceDecision(host, port, method)
		p.tracer.EndEnforceSpan(sp, string(decision))
		return decision
	}
	return p.enforceDecision(host, port, method)
}

// enforceDecision is the actual admission check, factored out so enforce
// can wrap it in a span without duplicating the logic.
func (p *Proxy) enforceDecision(host string, port int, method string) policy.Decision {
	d := p.policy.CheckDomain(host)
	p.policy.LogAttempt(host, port, method, string(d))

	if d != policy.DecisionPending {
		return d
	}
	if p.gate == nil {
		return policy.DecisionDeny
	}

	approved := p.gate.RequestApproval(host, port)

	final := policy.DecisionDeny
	verdict := "deny_after_review"
	if approved {
		final = policy.DecisionAllow
		verdict = "allow_after_review"
	}
	p.policy.LogAttempt(host, port, method, verdict)
	return final
}
