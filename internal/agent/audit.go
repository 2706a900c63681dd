package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sidecar/internal/extract"
	"sidecar/internal/logging"
	"sidecar/internal/plan"
)

// AuditRecord is the durable trace of one processed event: what ran,
// what was learned, and what was suggested. One record per valid
// session event, appended and never rewritten.
type AuditRecord struct {
	TS    float64         `json:"ts"`
	Cmd   string          `json:"cmd"`
	CWD   string          `json:"cwd"`
	Exit  int             `json:"exit"`
	Facts extract.FactSet `json:"facts"`
	Plan  plan.Plan       `json:"plan"`
}

// AuditLog is the append-only JSONL audit trail. Writes go through a
// single handle opened in append mode; reads re-open the file so the
// recent window always reflects what actually reached disk.
type AuditLog struct {
	path string
	f    *os.File
}

// OpenAuditLog opens (creating if needed) the audit trail at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{path: path, f: f}, nil
}

// Path returns the audit file location.
func (a *AuditLog) Path() string { return a.path }

// Append writes one record as a single JSON line. Failure here means
// the trail is no longer trustworthy, so the error must stop the loop
// rather than be absorbed.
func (a *AuditLog) Append(rec AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := a.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	logging.Audit("recorded cmd=%q actions=%d notes=%d",
		rec.Cmd, len(rec.Plan.NextActions), len(rec.Plan.Notes))
	return nil
}

// Recent reads back the last limit records, projected to the compact
// shape the planning request carries, oldest first. A missing or
// partly corrupt file degrades to fewer (or zero) events.
func (a *AuditLog) Recent(limit int) []plan.RecentEvent {
	if limit <= 0 {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil
	}

	var records []AuditRecord
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	events := make([]plan.RecentEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, plan.RecentEvent{
			TS:   strconv.FormatFloat(rec.TS, 'f', -1, 64),
			Cmd:  rec.Cmd,
			CWD:  rec.CWD,
			Exit: rec.Exit,
		})
	}
	return events
}

// Close releases the write handle. Append after Close fails, which the
// loop treats the same as any other audit failure.
func (a *AuditLog) Close() error {
	return a.f.Close()
}
