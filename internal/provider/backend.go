// Package provider hosts the interchangeable planning backends and the
// gateway that fronts them.
//
// Backends never return Go errors. Every failure becomes a RawFailure
// carrying stable reason codes, so the agent loop treats a model that
// is down exactly like a model that answered badly: the cycle records
// the reasons and moves on.
package provider

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"sidecar/internal/plan"
)

// Backend produces a raw plan for one request against one model tag.
type Backend interface {
	Name() string
	Plan(ctx context.Context, model string, req plan.Request) plan.RawResult
}

var fenceRE = regexp.MustCompile("(?s)```.*?```")

// markupSafe strips code fences and bracket markup from model text so
// excerpts render cleanly as terminal notes.
func markupSafe(s string) string {
	s = fenceRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "[", "(")
	s = strings.ReplaceAll(s, "]", ")")
	return strings.TrimSpace(s)
}

// cleanTag strips whitespace and stray shell quotes from a model tag.
// A quoted tag reaches the API verbatim and 400s.
func cleanTag(tag string) string {
	return strings.Trim(strings.TrimSpace(tag), `"'`)
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
