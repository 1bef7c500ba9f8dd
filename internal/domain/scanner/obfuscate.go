package scanner

import (
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var (
	base64Candidate = regexp.MustCompile(`[A-Za-z0-9+/_-]{28,}={0,2}`)
	hexCandidate    = regexp.MustCompile(`(?:[0-9a-fA-F]{2}[\s:-]?){15,}`)
	separatorChar   = regexp.MustCompile(`[.\s,]`)
)

// deobfuscateLayers applies the reassembly strategies an agent might use to
// smuggle a secret past a naive scanner, returning every variant worth
// re-running the Layer 1 and Layer 3 checks against. Each strategy is tried
// independently against the original content, not chained, matching the
// original implementation's flat pass order.
func deobfuscateLayers(content string) []string {
	var variants []string

	for _, m := range base64Candidate.FindAllString(content, -1) {
		if decoded, ok := tryDecodeBase64(m); ok {
			variants = append(variants, decoded)
		}
	}

	for _, m := range hexCandidate.FindAllString(content, -1) {
		if decoded, ok := tryDecodeHex(m); ok {
			variants = append(variants, decoded)
		}
	}

	if decoded, ok := tryURLDecode(content); ok {
		variants = append(variants, decoded)
	}

	if joined := removeSeparators(content); len(joined) > 20 && joined != content {
		variants = append(variants, joined)
	}

	if len(content) < 2000 {
		variants = append(variants, reverseString(content))
	}

	return variants
}

func tryDecodeBase64(s string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' {
			return '+'
		}
		if r == '_' {
			return '/'
		}
		return r
	}, s)
	for _, pad := range []int{0, 1, 2, 3} {
		padded := cleaned + strings.Repeat("=", pad)
		if decoded, err := base64.StdEncoding.DecodeString(padded); err == nil && isMostlyPrintable(decoded) {
			return string(decoded), true
		}
	}
	return "", false
}

func tryDecodeHex(s string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', '\t', '\n':
			return -1
		}
		return r
	}, s)
	if len(cleaned)%2 != 0 {
		return "", false
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil || !isMostlyPrintable(decoded) {
		return "", false
	}
	return string(decoded), true
}

func tryURLDecode(s string) (string, bool) {
	decoded, err := url.QueryUnescape(s)
	if err != nil || decoded == s {
		return "", false
	}
	return decoded, true
}

// removeSeparators strips runs of dots, spaces, and commas that sit between
// two non-space characters, undoing a common "d.o.t. s.e.p.a.r.a.t.e.d"
// evasion while leaving leading/trailing whitespace alone.
func removeSeparators(s string) string {
	r := []rune(s)
	var out []rune
	for i := 0; i < len(r); {
		if separatorChar.MatchString(string(r[i])) {
			j := i
			for j < len(r) && separatorChar.MatchString(string(r[j])) {
				j++
			}
			hasPrev := i > 0 && !separatorChar.MatchString(string(r[i-1]))
			hasNext := j < len(r) && !separatorChar.MatchString(string(r[j]))
			if hasPrev && hasNext {
				i = j
				continue
			}
			out = append(out, r[i:j]...)
			i = j
			continue
		}
		out = append(out, r[i])
		i++
	}
	return string(out)
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func isMostlyPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	printable := 0
	for _, c := range b {
		if c >= 0x20 && c < 0x7f || c == '\t' || c == '\n' || c == '\r' {
			printable++
		}
	}
	return float64(printable)/float64(len(b)) > 0.85
}
