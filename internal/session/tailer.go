package session

import (
	"bytes"
	"io"
	"os"
)

// Tailer reads newly appended lines from the session log. It keeps a
// byte offset and only ever advances it past complete lines, so a line
// the shell hook is still writing gets picked up whole on a later
// poll instead of arriving in fragments.
//
// The offset lives in memory only. A restarted agent re-reads the log
// from the beginning, which is safe because fact merging tolerates
// replayed events.
type Tailer struct {
	path string
	pos  int64
}

// NewTailer tails the log at path starting from the beginning.
func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

// Path returns the log file being tailed.
func (t *Tailer) Path() string { return t.path }

// Pos returns the current byte offset into the log.
func (t *Tailer) Pos() int64 { return t.pos }

// ReadNew returns the complete lines appended since the last call.
// A file that does not exist yet yields no lines and no error; the
// tail starts cleanly once the shell hook creates it. Any other
// failure is returned with the offset untouched, so the caller can
// back off and retry from the committed position.
func (t *Tailer) ReadNew() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(t.pos, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	end := len(data)
	if data[end-1] != '\n' {
		// Hold back the trailing partial line.
		nl := bytes.LastIndexByte(data, '\n')
		if nl < 0 {
			return nil, nil
		}
		end = nl + 1
	}
	t.pos += int64(end)

	var lines []string
	for _, raw := range bytes.Split(data[:end], []byte{'\n'}) {
		if len(raw) == 0 {
			continue
		}
		lines = append(lines, string(raw))
	}
	return lines, nil
}
