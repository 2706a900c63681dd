package retrieval

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"sidecar/internal/logging"
)

// fallbackMax caps the single catch-all chunk built from a document
// with no recognizable headings.
const fallbackMax = 6000

// IngestHTML parses an HTML export, splits it into heading-delimited
// chunks, and replaces the store's view of that document. Chunk ids
// are derived from the expanded path, the chunk index, and the title,
// so re-ingesting the same file yields the same ids. Returns the
// number of chunks written.
func IngestHTML(s *Store, path string) (int, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "IngestHTML")
	defer timer.Stop()

	src := expandUser(path)
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sections := chunkHTML(doc)
	chunks := make([]Chunk, 0, len(sections))
	for i, sec := range sections {
		chunks = append(chunks, Chunk{
			ID:    chunkID(src, i, sec.title),
			Title: sec.title,
			Text:  sec.text,
			Tags:  normalizeTags(sec.tags),
		})
	}
	if err := s.ReplaceSource(src, chunks); err != nil {
		return 0, err
	}
	logging.Retrieval("ingested %d chunks from %s", len(chunks), src)
	return len(chunks), nil
}

// IngestAll ingests every path concurrently. Parsing runs in
// parallel; the store serializes writes internally. Returns per-path
// chunk counts keyed by the expanded path.
func IngestAll(s *Store, paths []string) (map[string]int, error) {
	var (
		mu     sync.Mutex
		counts = make(map[string]int)
	)
	var g errgroup.Group
	for _, p := range paths {
		p := p
		g.Go(func() error {
			n, err := IngestHTML(s, p)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[expandUser(p)] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, err
	}
	return counts, nil
}

// chunkID derives a stable hex id for one chunk of one source file.
func chunkID(source string, index int, title string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%s", source, index, title)))
	return hex.EncodeToString(sum[:])
}

// section is a chunk before ids and tag normalization are applied.
type section struct {
	title string
	text  string
	tags  string
}

// chunkNodes are the elements that contribute to chunking. Headings
// start a new section; the rest accumulate text into the current one.
var chunkNodes = map[string]bool{
	"h1": true, "h2": true,
	"p": true, "li": true, "pre": true, "code": true,
}

// chunkHTML walks the document in order, starting a section at each
// h1/h2 and buffering body text until the next heading. Matched
// elements are still descended into, so a code block nested in a pre
// contributes its text twice. A document with no headings collapses
// into a single capped "Notes" section.
func chunkHTML(doc *html.Node) []section {
	var (
		sections []section
		curTitle string
		curTag   string
		buf      []string
	)

	flush := func() {
		if curTitle != "" && len(buf) > 0 {
			sections = append(sections, section{
				title: normText(curTitle),
				text:  normText(strings.Join(buf, "\n")),
				tags:  curTag,
			})
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && chunkNodes[n.Data] {
			switch n.Data {
			case "h1", "h2":
				flush()
				curTitle = elementText(n)
				curTag = curTitle
				buf = nil
			default:
				if txt := elementText(n); txt != "" {
					buf = append(buf, txt)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	if len(sections) == 0 {
		if whole := normText(elementText(doc)); whole != "" {
			sections = append(sections, section{
				title: "Notes",
				text:  truncate(whole, fallbackMax),
				tags:  "General",
			})
		}
	}
	return sections
}

// elementText joins the trimmed text nodes under n with single spaces.
func elementText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// normText collapses all runs of whitespace to single spaces.
func normText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeTags cleans a comma-separated tag list, dropping empty
// entries and falling back to General.
func normalizeTags(raw string) string {
	if raw == "" {
		raw = "General"
	}
	var parts []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "General"
	}
	return strings.Join(parts, ",")
}

// expandUser resolves a leading ~ against the current home directory.
func expandUser(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				return home
			}
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
