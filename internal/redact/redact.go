// Package redact scrubs credential material and private network
// addresses from text before it leaves the host. Only private IPv4
// ranges are rewritten; public addresses pass through untouched.
package redact

import "regexp"

var patterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]\s*["']?([A-Za-z0-9._\-]{12,})["']?`), "API_KEY"},
	{regexp.MustCompile(`(?i)\bsecret[_-]?key\s*[:=]\s*["']?([^"']{8,})["']?`), "SECRET"},
	{regexp.MustCompile(`(?i)\bpassword\s*[:=]\s*["']?([^"']{4,})["']?`), "PASSWORD"},
	{regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-_.=]+`), "TOKEN"},
	{regexp.MustCompile(`\b[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`), "JWT"},
	{regexp.MustCompile(`\b(?:10\.(?:\d{1,3}\.){2}\d{1,3}|192\.168\.(?:\d{1,3}\.)\d{1,3}|172\.(?:1[6-9]|2\d|3[0-1])\.(?:\d{1,3}\.)\d{1,3})\b`), "IP_PRIV"},
}

// Text replaces every sensitive span in s with a <LABEL> placeholder.
// Patterns apply in fixed order; each replaces its whole match.
func Text(s string) string {
	out := s
	for _, p := range patterns {
		out = p.re.ReplaceAllString(out, "<"+p.label+">")
	}
	return out
}

// Strings applies Text to each element, returning a new slice.
func Strings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Text(s)
	}
	return out
}
