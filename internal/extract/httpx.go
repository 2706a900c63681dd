package extract

import (
	"regexp"
	"strings"
)

// httpxRecognizer reads httpx-style probe lines: "[status] url [meta]".
// URLs feed the canonical url leaf; the technology metadata rides in
// Extra under "web_tech".
type httpxRecognizer struct{}

var reHTTPXLine = regexp.MustCompile(`\[(\d{3})\]\s+([^\s]+).*?\[(.*?)\]`)

func (httpxRecognizer) Name() string { return "httpx-lines" }

func (httpxRecognizer) Sniff(path, text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if reHTTPXLine.MatchString(line) {
			return true
		}
	}
	return false
}

func (httpxRecognizer) Parse(path, text string) FactSet {
	fs := NewFactSet()
	var urls []string
	var rows []any
	for _, line := range strings.Split(text, "\n") {
		m := reHTTPXLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		status, url, meta := m[1], m[2], m[3]
		if strings.HasPrefix(strings.ToLower(url), "http") {
			urls = append(urls, url)
		}
		rows = append(rows, map[string]any{
			"host":     url,
			"tech":     meta,
			"evidence": status,
		})
	}
	fs.Entities.URLs = sortedUnique(urls)
	if len(rows) > 0 {
		fs.Extra = map[string]any{"web_tech": rows}
	}
	return fs
}
