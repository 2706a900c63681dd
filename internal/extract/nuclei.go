package extract

import (
	"encoding/json"
	"strings"
)

// nucleiRecognizer reads nuclei JSONL findings. Template ids in CVE form
// feed the canonical cve leaf, matched URLs the url leaf; every finding
// also rides in Extra under "nuclei".
type nucleiRecognizer struct{}

type nucleiFinding struct {
	TemplateID string `json:"template-id"`
	ID         string `json:"id"`
	MatchedAt  string `json:"matched-at"`
	Host       string `json:"host"`
	Info       struct {
		Severity string `json:"severity"`
		Tags     string `json:"tags"`
	} `json:"info"`
}

func (nucleiRecognizer) Name() string { return "nuclei-jsonl" }

func (nucleiRecognizer) Sniff(path, text string) bool {
	return strings.Contains(text, "template-id")
}

func (nucleiRecognizer) Parse(path, text string) FactSet {
	fs := NewFactSet()
	var cves []string
	var urls []string
	var rows []any
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var f nucleiFinding
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			continue
		}

		id := f.TemplateID
		if id == "" {
			id = f.ID
		}
		if id == "" {
			id = "unknown"
		}
		severity := f.Info.Severity
		if severity == "" {
			severity = "info"
		}
		url := f.MatchedAt
		if url == "" {
			url = f.Host
		}

		if upper := strings.ToUpper(id); strings.HasPrefix(upper, "CVE-") {
			cves = append(cves, upper)
		}
		if strings.HasPrefix(strings.ToLower(url), "http") {
			urls = append(urls, url)
		}
		var tags []any
		for _, t := range strings.Split(f.Info.Tags, ",") {
			tags = append(tags, t)
		}
		rows = append(rows, map[string]any{
			"severity": severity,
			"id":       id,
			"url":      url,
			"tags":     tags,
		})
	}
	fs.Vulns.CVEs = sortedUnique(cves)
	fs.Entities.URLs = sortedUnique(urls)
	if len(rows) > 0 {
		fs.Extra = map[string]any{"nuclei": rows}
	}
	return fs
}
