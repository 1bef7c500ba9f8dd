package scanner

// Finding is a single match reported by Scan. It carries only a category
// and a tag identifying which pattern or technique fired — never the
// matched text, so findings are safe to log and alert on directly.
type Finding struct {
	Category string // "secret" or "sensitive_data"
	Tag      string
}

// Result is the outcome of scanning one piece of content.
type Result struct {
	Findings []Finding
}

// Matched reports whether the scan turned up anything.
func (r Result) Matched() bool {
	return len(r.Findings) > 0
}

// Scanner detects secrets and sensitive data in plaintext content crossing
// the egress boundary, including several common obfuscation techniques.
// It holds no state and is safe for concurrent use.
type Scanner struct{}

// New returns a ready-to-use Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan runs all four detection layers over content and returns every
// distinct finding. Layers are independent: a piece of content can trigger
// more than one.
func (s *Scanner) Scan(content string) Result {
	var res Result
	seen := make(map[string]bool)

	add := func(category, tag string) {
		key := category + ":" + tag
		if seen[key] {
			return
		}
		seen[key] = true
		res.Findings = append(res.Findings, Finding{Category: category, Tag: tag})
	}

	s.scanDirect(content, add)

	for _, variant := range deobfuscateLayers(content) {
		for _, p := range secretPatterns {
			if p.re.MatchString(variant) {
				add("secret", "obfuscated_secret:"+p.tag)
			}
		}
	}

	for _, tag := range highEntropyRuns(content) {
		add("secret", tag)
	}

	for _, p := range sensitivePatterns {
		if p.re.MatchString(content) {
			add("sensitive_data", p.tag)
		}
	}

	return res
}

// scanDirect runs the Layer 1 direct pattern table against content.
func (s *Scanner) scanDirect(content string, add func(category, tag string)) {
	for _, p := range secretPatterns {
		if p.re.MatchString(content) {
			add("secret", p.tag)
		}
	}
}

// Tags returns just the tag strings from a Result, the form CrabPot logs
// and alerts with — content itself is never surfaced.
func (r Result) Tags() []string {
	tags := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		tags = append(tags, f.Tag)
	}
	return tags
}
