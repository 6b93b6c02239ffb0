// Package claims splits an answer into sentence-level claims.
package claims

import (
	"regexp"
	"strings"
)

var terminators = regexp.MustCompile(`[.!?]+`)

// Split segments text on runs of '.', '!' and '?', trims each segment and
// drops empty ones. Abbreviations are split like any other terminator.
func Split(text string) []string {
	parts := terminators.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
