package retrieval

import (
	"path/filepath"
	"testing"
)

func mustOpen(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUpsert(t *testing.T, s *Store, c Chunk) {
	t.Helper()
	if err := s.Upsert(c); err != nil {
		t.Fatalf("Failed to upsert %s: %v", c.ID, err)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rag", "kb.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	if s.Path() != path {
		t.Errorf("Path = %q, want %q", s.Path(), path)
	}
	if n, err := s.Count(); err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want 0, nil", n, err)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := mustOpen(t)

	got, err := s.Search("Web", 4)
	if err != nil {
		t.Fatalf("Search on empty store returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search on empty store returned %d snippets, want 0", len(got))
	}
}

func TestUpsertAndSearch(t *testing.T) {
	s := mustOpen(t)

	mustUpsert(t, s, Chunk{
		ID:    "net-1",
		Title: "Network Recon",
		Text:  "Start with an nmap service scan before anything else.",
		Tags:  "Network",
	})
	mustUpsert(t, s, Chunk{
		ID:    "web-1",
		Title: "Web Login Attacks",
		Text:  "Brute force the login form with hydra wordlists.",
		Tags:  "Web",
	})

	got, err := s.Search("nmap", 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search returned %d snippets, want 1", len(got))
	}
	sn := got[0]
	if sn.ID != "net-1" {
		t.Errorf("ID = %q, want net-1", sn.ID)
	}
	if sn.Title != "Network Recon" {
		t.Errorf("Title = %q", sn.Title)
	}
	if sn.Tags != "Network" {
		t.Errorf("Tags = %q", sn.Tags)
	}
	if sn.Gist != "Start with an nmap service scan before anything else." {
		t.Errorf("Gist = %q", sn.Gist)
	}
	if sn.Score >= 0 {
		t.Errorf("Score = %v, want a negative bm25 rank", sn.Score)
	}
}

func TestSearchRankOrdering(t *testing.T) {
	s := mustOpen(t)

	mustUpsert(t, s, Chunk{
		ID:    "dense",
		Title: "SSH Brute Force",
		Text:  "ssh ssh ssh keys and password spraying over ssh",
		Tags:  "Credentials",
	})
	mustUpsert(t, s, Chunk{
		ID:    "sparse",
		Title: "General Notes",
		Text: "A long collection of general engagement notes that mentions ssh " +
			"exactly once among many other unrelated observations about scoping, " +
			"reporting deadlines, client contacts and travel logistics.",
		Tags: "General",
	})

	got, err := s.Search("ssh", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search returned %d snippets, want 2", len(got))
	}
	if got[0].ID != "dense" {
		t.Errorf("Best hit = %q, want dense", got[0].ID)
	}
	if got[0].Score > got[1].Score {
		t.Errorf("Results not ordered by rank: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestSearchLimit(t *testing.T) {
	s := mustOpen(t)

	for _, id := range []string{"a", "b", "c"} {
		mustUpsert(t, s, Chunk{ID: id, Title: "T " + id, Text: "shared token payload " + id, Tags: "General"})
	}

	got, err := s.Search("payload", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search returned %d snippets, want 2", len(got))
	}
}

func TestUpsertRefreshesIndex(t *testing.T) {
	s := mustOpen(t)

	mustUpsert(t, s, Chunk{ID: "x", Title: "First", Text: "alpha content", Tags: "General"})
	mustUpsert(t, s, Chunk{ID: "x", Title: "Second", Text: "bravo content", Tags: "General"})

	if n, err := s.Count(); err != nil || n != 1 {
		t.Fatalf("Count = %d, %v; want 1, nil", n, err)
	}
	stale, err := s.Search("alpha", 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Stale term still matched %d snippets", len(stale))
	}
	fresh, err := s.Search("bravo", 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != "x" || fresh[0].Title != "Second" {
		t.Errorf("Fresh search = %+v, want one hit for x/Second", fresh)
	}
}

func TestReplaceSourceDropsStale(t *testing.T) {
	s := mustOpen(t)

	first := []Chunk{
		{ID: "c1", Title: "One", Text: "enumeration basics", Tags: "Network"},
		{ID: "c2", Title: "Two", Text: "privilege escalation checklist", Tags: "General"},
		{ID: "c3", Title: "Three", Text: "obsolete trick removed later", Tags: "General"},
	}
	if err := s.ReplaceSource("/notes/book.html", first); err != nil {
		t.Fatalf("ReplaceSource failed: %v", err)
	}
	if n, _ := s.Count(); n != 3 {
		t.Fatalf("Count after first ingest = %d, want 3", n)
	}

	second := []Chunk{
		{ID: "c1", Title: "One", Text: "enumeration basics, revised", Tags: "Network"},
	}
	if err := s.ReplaceSource("/notes/book.html", second); err != nil {
		t.Fatalf("ReplaceSource failed: %v", err)
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("Count after re-ingest = %d, want 1", n)
	}
	gone, err := s.Search("obsolete", 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("Dropped chunk still matched %d snippets", len(gone))
	}
}

func TestReplaceSourceLeavesOtherSourcesAlone(t *testing.T) {
	s := mustOpen(t)

	if err := s.ReplaceSource("/a.html", []Chunk{{ID: "a1", Title: "A", Text: "alpha notes", Tags: "General"}}); err != nil {
		t.Fatalf("ReplaceSource failed: %v", err)
	}
	if err := s.ReplaceSource("/b.html", []Chunk{{ID: "b1", Title: "B", Text: "bravo notes", Tags: "General"}}); err != nil {
		t.Fatalf("ReplaceSource failed: %v", err)
	}
	if err := s.ReplaceSource("/a.html", nil); err != nil {
		t.Fatalf("ReplaceSource failed: %v", err)
	}

	if n, _ := s.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	got, err := s.Search("bravo", 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Errorf("Search = %+v, want the untouched b1 chunk", got)
	}
}

func TestSearchGistTruncated(t *testing.T) {
	s := mustOpen(t)

	long := "marker "
	for len(long) <= GistMax*3 {
		long += "padding words to push the text well past the gist limit "
	}
	mustUpsert(t, s, Chunk{ID: "long", Title: "Long", Text: long, Tags: "General"})

	got, err := s.Search("marker", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search returned %d snippets, want 1", len(got))
	}
	if len(got[0].Gist) != GistMax {
		t.Errorf("Gist length = %d, want %d", len(got[0].Gist), GistMax)
	}
	if got[0].Gist != long[:GistMax] {
		t.Errorf("Gist is not a prefix of the chunk text")
	}
}

func TestSearchQuotedOperatorCharacters(t *testing.T) {
	s := mustOpen(t)

	mustUpsert(t, s, Chunk{
		ID:    "sqli",
		Title: "Injection",
		Text:  "Classic sql-injection probes against the search parameter.",
		Tags:  "Vulnerabilities",
	})

	// Bare hyphens and quotes are FTS5 syntax; the store must treat
	// them as literal query text.
	for _, q := range []string{"sql-injection", `"sql-injection"`, `probes AND`, "NOT"} {
		if _, err := s.Search(q, 4); err != nil {
			t.Errorf("Search(%q) returned error: %v", q, err)
		}
	}
	got, err := s.Search("sql-injection", 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "sqli" {
		t.Errorf("Search = %+v, want the sqli chunk", got)
	}
}

func TestFtsQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Web", `"Web"`},
		{"two words", `"two" "words"`},
		{`he said "hi"`, `"he" "said" """hi"""`},
		{"", `""`},
		{"   ", `""`},
	}
	for _, tt := range tests {
		if got := ftsQuote(tt.in); got != tt.want {
			t.Errorf("ftsQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	s := "abcéxyz" // é is two bytes
	got := truncate(s, 4)
	if got != "abc" {
		t.Errorf("truncate split a rune: %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Errorf("truncate modified a string under the limit")
	}
}
