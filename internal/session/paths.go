package session

import (
	"os"
	"path/filepath"
	"strings"
)

// Flags whose next token names an output file.
var outputFlags = map[string]bool{
	"--json":  true,
	"--jsonl": true,
	"--xml":   true,
	"-o":      true,
	"-oX":     true,
	"-oN":     true,
	"-oG":     true,
}

// DetectOutputPaths scans a command line for tokens that name tool
// output files and returns the ones that exist on disk. Only the
// common spellings are recognized. A miss is harmless, the extractor
// then works from captured stdout alone.
func DetectOutputPaths(cmd, cwd string) []string {
	toks := strings.Fields(cmd)
	var candidates []string
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if outputFlags[t] && i+1 < len(toks) {
			candidates = append(candidates, resolvePath(toks[i+1], cwd))
			i++
			continue
		}
		switch {
		case strings.HasPrefix(t, "--output="):
			candidates = append(candidates, resolvePath(strings.SplitN(t, "=", 2)[1], cwd))
		case strings.HasPrefix(t, "-o") && len(t) > 2 && !strings.HasPrefix(t, "-oX"):
			candidates = append(candidates, resolvePath(t[2:], cwd))
		case t == ">" && i+1 < len(toks):
			candidates = append(candidates, resolvePath(toks[i+1], cwd))
		}
	}

	var existing []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	return existing
}

// resolvePath expands a leading ~ and anchors relative paths at the
// event's cwd, falling back to the process working directory.
func resolvePath(p, cwd string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	if !filepath.IsAbs(p) {
		base := cwd
		if base == "" {
			if wd, err := os.Getwd(); err == nil {
				base = wd
			}
		}
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}
