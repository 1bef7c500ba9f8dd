package scanner

import (
	"fmt"
	"math"
)

// shannonEntropy computes the Shannon entropy of s in bits per character.
// A high score over a long run of base64/hex-looking characters is a strong
// signal of key material even when it matches no known prefix.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	n := float64(len(s))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// highEntropyRuns scans content for candidate runs of at least
// minEntropyLength characters whose Shannon entropy meets entropyThreshold,
// returning one finding tag per run in the form "high_entropy:<H>bpc_len<N>".
func highEntropyRuns(content string) []string {
	var tags []string
	for _, run := range entropyCandidate.FindAllString(content, -1) {
		if len(run) < minEntropyLength {
			continue
		}
		if h := shannonEntropy(run); h >= entropyThreshold {
			tags = append(tags, fmt.Sprintf("high_entropy:%.1fbpc_len%d", h, len(run)))
		}
	}
	return tags
}
