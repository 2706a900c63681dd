// Package retrieval persists knowledge chunks in SQLite and answers
// topic queries through an FTS5 index.
//
// The store is one base table keyed by stable chunk id plus an fts5
// mirror kept in sync on every write. FTS5 tables have no upsert, so
// mirror rows are refreshed by base rowid with INSERT OR REPLACE.
package retrieval

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"sidecar/internal/logging"
)

// Chunk is one knowledge unit produced by ingestion.
type Chunk struct {
	ID    string
	Title string
	Text  string
	Tags  string
}

// Snippet is one query hit. Gist is the chunk text truncated for
// prompt use. Score is the FTS5 bm25 rank, lower is better.
type Snippet struct {
	ID    string
	Title string
	Gist  string
	Tags  string
	Score float64
}

// GistMax bounds the text carried back from a query.
const GistMax = 240

// Store wraps the chunk table and its full-text index. Writes are
// serialized by a mutex; SQLite's own locking covers readers.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open initializes the store at path, creating the parent directory
// and schema when absent.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.RetrievalDebug("pragma failed: %s: %v", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Retrieval("store ready at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id     TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			title  TEXT,
			text   TEXT,
			tags   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(text, title, tags)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	logging.Retrieval("closing store at %s", s.path)
	return s.db.Close()
}

// Upsert writes one standalone chunk and refreshes its index entry.
// Ingestion goes through ReplaceSource instead so stale chunks from a
// re-ingested document get dropped.
func (s *Store) Upsert(c Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTx(tx, "", c); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceSource swaps every chunk belonging to one source document in
// a single transaction. Re-ingesting a document that shrank leaves no
// stale chunks behind.
func (s *Store) ReplaceSource(source string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM chunks_fts WHERE rowid IN (SELECT rowid FROM chunks WHERE source = ?)`,
		source,
	); err != nil {
		return fmt.Errorf("failed to clear index for %s: %w", source, err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("failed to clear chunks for %s: %w", source, err)
	}
	for _, c := range chunks {
		if err := upsertTx(tx, source, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertTx(tx *sql.Tx, source string, c Chunk) error {
	if _, err := tx.Exec(
		`INSERT INTO chunks (id, source, title, text, tags) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   source = excluded.source,
		   title  = excluded.title,
		   text   = excluded.text,
		   tags   = excluded.tags`,
		c.ID, source, c.Title, c.Text, c.Tags,
	); err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
	}

	var rowid int64
	if err := tx.QueryRow(`SELECT rowid FROM chunks WHERE id = ?`, c.ID).Scan(&rowid); err != nil {
		return fmt.Errorf("failed to resolve rowid for %s: %w", c.ID, err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO chunks_fts (rowid, text, title, tags) VALUES (?, ?, ?, ?)`,
		rowid, c.Text, c.Title, c.Tags,
	); err != nil {
		return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
	}
	return nil
}

// Search runs a full-text match and returns up to k snippets ordered
// by bm25 rank, best first. An empty index or an unusable query yields
// an empty result, never an error; the agent treats zero snippets as
// routine.
func (s *Store) Search(query string, k int) ([]Snippet, error) {
	if k <= 0 {
		k = 4
	}

	rows, err := s.db.Query(
		`SELECT c.id, c.title, c.tags, c.text, chunks_fts.rank
		 FROM chunks_fts
		 JOIN chunks c ON c.rowid = chunks_fts.rowid
		 WHERE chunks_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		ftsQuote(query), k,
	)
	if err != nil {
		logging.RetrievalDebug("search %q failed: %v", query, err)
		return nil, nil
	}
	defer rows.Close()

	var out []Snippet
	for rows.Next() {
		var sn Snippet
		var text string
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Tags, &text, &sn.Score); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		sn.Gist = truncate(text, GistMax)
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snippets: %w", err)
	}
	logging.RetrievalDebug("search %q -> %d snippets", query, len(out))
	return out, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// ftsQuote wraps every term in double quotes so operator characters in
// a topic or user query match literally instead of being parsed as
// FTS5 syntax.
func ftsQuote(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
