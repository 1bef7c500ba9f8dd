package policy

import "path/filepath"

// Matches reports whether domain satisfies p. Exact patterns require
// equality. Wildcard patterns `*.host.tld` match host.tld itself and any
// strict subdomain. Everything else falls back to shell-glob semantics.
func (p Pattern) Matches(domain string) bool {
	switch p.kind {
	case kindExact:
		return domain == p.raw
	case kindWildcard:
		suffix := p.raw[1:] // ".host.tld"
		bare := p.raw[2:]   // "host.tld"
		return domain == bare || hasSuffixDot(domain, suffix)
	default:
		ok, err := filepath.Match(p.raw, domain)
		return err == nil && ok
	}
}

func hasSuffixDot(domain, suffix string) bool {
	if len(domain) <= len(suffix) {
		return false
	}
	return domain[len(domain)-len(suffix):] == suffix
}

// matchAny reports whether domain matches any pattern in the ordered set,
// scanning in insertion order so the first match wins.
func matchAny(patterns []Pattern, domain string) bool {
	for _, p := range patterns {
		if p.Matches(domain) {
			return true
		}
	}
	return false
}
