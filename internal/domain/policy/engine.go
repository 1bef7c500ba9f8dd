package policy

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/crabpot-sandbox/crabpot/internal/domain/scanner"
)

const (
	maxAuditLog    = 5000
	trimAuditLogTo = 2500
)

// defaultBlocklist seeds the blocked pattern set with well-known tunnel,
// webhook-capture, and paste services an agent could use to exfiltrate data
// even when every domain it would otherwise touch is allowed.
var defaultBlocklist = []string{
	"*.ngrok.io",
	"*.ngrok-free.app",
	"*.requestbin.com",
	"*.pipedream.net",
	"webhook.site",
	"*.burpcollaborator.net",
	"*.oastify.com",
	"*.interact.sh",
	"*.canarytokens.com",
	"pastebin.com",
	"hastebin.com",
	"*.requestcatcher.com",
	"*.hookbin.com",
}

// AllowlistStore persists the allowed-pattern set across restarts. Session
// state (sessionApproved/sessionDenied) and the audit log are never
// persisted.
type AllowlistStore interface {
	Load() ([]Pattern, error)
	Save(patterns []Pattern) error
}

// Engine evaluates domains against ordered allow/block pattern sets plus
// in-memory session overrides, scans content for secrets on request, and
// keeps a bounded audit trail of every decision made.
//
// One lock guards all sets and the audit log. Callers must not iterate a
// snapshot returned by a getter while still holding a reference expected to
// reflect later mutations — snapshots are copies.
type Engine struct {
	mu sync.Mutex

	allowed []Pattern
	blocked []Pattern

	sessionApproved map[string]bool
	sessionDenied   map[string]bool

	audit []AuditEntry

	// decisionCache memoizes CheckDomain by a hash of the lowercased domain.
	// Every mutation to allowed/sessionApproved/sessionDenied drops the
	// affected entry or clears it — a stale hit would outlive the rule that
	// produced it.
	decisionCache map[uint64]Decision

	unknownAction UnknownAction

	store   AllowlistStore
	scanner *scanner.Scanner
	log     *slog.Logger
}

// New constructs an Engine. initialAllowed is the persisted allowlist
// loaded at startup (possibly empty); extraBlocked are additional
// `!`-prefixed blocklist entries from the policy file, appended after the
// built-in defaults.
func New(initialAllowed []Pattern, extraBlocked []string, unknownAction UnknownAction, store AllowlistStore, log *slog.Logger) *Engine {
	blocked := make([]Pattern, 0, len(defaultBlocklist)+len(extraBlocked))
	for _, raw := range defaultBlocklist {
		blocked = append(blocked, NewPattern(raw))
	}
	for _, raw := range extraBlocked {
		blocked = append(blocked, NewPattern(raw))
	}

	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		allowed:         initialAllowed,
		blocked:         blocked,
		sessionApproved: make(map[string]bool),
		sessionDenied:   make(map[string]bool),
		decisionCache:   make(map[uint64]Decision),
		unknownAction:   unknownAction,
		store:           store,
		scanner:         scanner.New(),
		log:             log,
	}
}

// CheckDomain evaluates domain (lowercased first) against the deterministic
// precedence blocked > sessionDenied > allowed > sessionApproved >
// unknownAction, each set scanned in insertion order with first-match-wins.
// Every egress connection re-runs this against the same handful of domains
// a workload actually talks to, so the result is memoized by a hash of the
// domain until the next pattern-set mutation invalidates it.
func (e *Engine) CheckDomain(domain string) Decision {
	domain = strings.ToLower(domain)
	key := xxhash.Sum64String(domain)

	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok := e.decisionCache[key]; ok {
		return d
	}

	var decision Decision
	switch {
	case matchAny(e.blocked, domain):
		decision = DecisionDeny
	case e.sessionDenied[domain]:
		decision = DecisionDeny
	case matchAny(e.allowed, domain):
		decision = DecisionAllow
	case e.sessionApproved[domain]:
		decision = DecisionAllow
	default:
		decision = e.unknownAction.resolve()
	}
	e.decisionCache[key] = decision
	return decision
}

// SessionApprove marks domain approved for the remainder of the process
// lifetime, removing it from sessionDenied if present.
func (e *Engine) SessionApprove(domain string) {
	domain = strings.ToLower(domain)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessionDenied, domain)
	e.sessionApproved[domain] = true
	e.invalidateCache(domain)
}

// SessionDeny marks domain denied for the remainder of the process
// lifetime, removing it from sessionApproved if present.
func (e *Engine) SessionDeny(domain string) {
	domain = strings.ToLower(domain)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessionApproved, domain)
	e.sessionDenied[domain] = true
	e.invalidateCache(domain)
}

// AddPermanent adds domain to the allowed set and persists it immediately.
// A persistence failure is logged, never returned — an unwritable allowlist
// file must not make the engine unusable for the rest of the session.
func (e *Engine) AddPermanent(domain string) {
	domain = strings.ToLower(domain)
	e.mu.Lock()
	if !matchAny(e.allowed, domain) {
		e.allowed = append(e.allowed, NewPattern(domain))
	}
	e.clearCache()
	snapshot := append([]Pattern(nil), e.allowed...)
	e.mu.Unlock()

	e.persist(snapshot)
}

// RemovePermanent removes any exact-match pattern equal to domain from the
// allowed set and persists the result. Wildcard/glob patterns that happen
// to cover domain are left untouched — removing a whole rule class is an
// explicit policy-file edit, not an implicit side effect of this call.
func (e *Engine) RemovePermanent(domain string) {
	domain = strings.ToLower(domain)
	e.mu.Lock()
	kept := e.allowed[:0:0]
	for _, p := range e.allowed {
		if p.String() == domain {
			continue
		}
		kept = append(kept, p)
	}
	e.allowed = kept
	e.clearCache()
	snapshot := append([]Pattern(nil), e.allowed...)
	e.mu.Unlock()

	e.persist(snapshot)
}

// invalidateCache drops the cached decision for a single domain. Callers
// must hold e.mu.
func (e *Engine) invalidateCache(domain string) {
	delete(e.decisionCache, xxhash.Sum64String(domain))
}

// clearCache drops every cached decision. Callers must hold e.mu. Used when
// a pattern-set mutation (allow/block add or remove) may have changed the
// outcome for more than one domain at once, e.g. a newly added wildcard.
func (e *Engine) clearCache() {
	e.decisionCache = make(map[uint64]Decision)
}

func (e *Engine) persist(patterns []Pattern) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(patterns); err != nil {
		e.log.Warn("failed to persist allowlist", "error", err)
	}
}

// LogAttempt appends an audit entry, trimming the log to its last
// trimAuditLogTo entries once it exceeds maxAuditLog.
func (e *Engine) LogAttempt(domain string, port int, method, decision string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.audit = append(e.audit, AuditEntry{
		Timestamp: time.Now(),
		Domain:    domain,
		Port:      port,
		Method:    method,
		Decision:  decision,
	})
	if len(e.audit) > maxAuditLog {
		e.audit = append([]AuditEntry(nil), e.audit[len(e.audit)-trimAuditLogTo:]...)
	}
}

// GetAllowlist returns a snapshot of the allowed pattern set.
func (e *Engine) GetAllowlist() []Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Pattern(nil), e.allowed...)
}

// GetSessionApproved returns a snapshot of the session-approved domain set.
func (e *Engine) GetSessionApproved() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sessionApproved))
	for d := range e.sessionApproved {
		out = append(out, d)
	}
	return out
}

// GetAuditLog returns the last n audit entries, oldest first. A zero or
// negative n returns the full (bounded) log.
func (e *Engine) GetAuditLog(n int) []AuditEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n >= len(e.audit) {
		return append([]AuditEntry(nil), e.audit...)
	}
	return append([]AuditEntry(nil), e.audit[len(e.audit)-n:]...)
}

// ScanForSecrets delegates to the Scanner and returns the finding tags.
func (e *Engine) ScanForSecrets(content string) []string {
	return e.scanner.Scan(content).Tags()
}
