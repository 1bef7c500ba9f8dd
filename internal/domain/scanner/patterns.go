// Package scanner implements CrabPot's obfuscation-aware secret and
// sensitive-data detector. It is a pure, stateless function over a byte
// string: it never logs or returns the matched content, only a finding tag.
package scanner

import "regexp"

// secretPattern is a compiled regex paired with the tag prefix used when it
// matches. Findings carry only the tag, never the matched text.
type secretPattern struct {
	tag string
	re  *regexp.Regexp
}

// secretPatterns is the Layer 1 direct-match table: OpenAI, Anthropic, AWS,
// Bearer tokens, GitHub/GitLab PATs, Slack tokens, and a generic
// key/secret/token assignment capture.
var secretPatterns = []secretPattern{
	{tag: "openai_key", re: regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{tag: "anthropic_key", re: regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{tag: "aws_access_key", re: regexp.MustCompile(`(?:AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}`)},
	{tag: "bearer_token", re: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{30,}`)},
	{tag: "github_pat", re: regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`)},
	{tag: "gitlab_pat", re: regexp.MustCompile(`glpat-[A-Za-z0-9_-]{20,}`)},
	{tag: "slack_token", re: regexp.MustCompile(`xox[bpsa]-[A-Za-z0-9-]{10,}`)},
	{
		tag: "generic_secret_assignment",
		re: regexp.MustCompile(`(?i)(?:api[_-]?key|api[_-]?secret|access[_-]?token|private[_-]?key)` +
			`\s*[:=]\s*['"]?[A-Za-z0-9+/=_-]{20,}['"]?`),
	},
}

// sensitivePattern is the Layer 4 table: private IPs, key material markers,
// passwd shape, and reconnaissance markers.
var sensitivePatterns = []secretPattern{
	{tag: "private_ip_10", re: regexp.MustCompile(`\b10\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
	{tag: "private_ip_172", re: regexp.MustCompile(`\b172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}\b`)},
	{tag: "private_ip_192", re: regexp.MustCompile(`\b192\.168\.\d{1,3}\.\d{1,3}\b`)},
	{tag: "private_key_marker", re: regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
	{tag: "passwd_shape", re: regexp.MustCompile(`root:[x*]:0:0:`)},
	{tag: "recon_marker", re: regexp.MustCompile(`(?i)(?:hostname|username|whoami|uname)\s*[:=]\s*\S+`)},
}

// entropyCandidate matches runs worth Shannon-entropy scoring (Layer 3).
var entropyCandidate = regexp.MustCompile(`[A-Za-z0-9+/=_-]{30,}`)

const (
	entropyThreshold  = 4.8
	minEntropyLength  = 30
)
