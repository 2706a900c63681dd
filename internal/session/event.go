// Package session observes the append-only shell session log.
//
// The log is JSONL: one object per executed command, written by a
// shell hook as the operator works. Parsing is deliberately forgiving.
// Anything that is not a JSON object carrying a cmd field is skipped,
// so a half-written line or stray shell output never stalls the tail.
package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is one executed shell command as recorded by the session hook.
type Event struct {
	TS   float64 `json:"ts"`
	Cmd  string  `json:"cmd"`
	Exit int     `json:"exit"`
	CWD  string  `json:"cwd"`
	Out  string  `json:"out"`
}

// wireEvent uses pointer fields so a missing cmd can be told apart
// from an empty one.
type wireEvent struct {
	TS   *float64 `json:"ts"`
	Cmd  *string  `json:"cmd"`
	Exit *int     `json:"exit"`
	CWD  *string  `json:"cwd"`
	Out  *string  `json:"out"`
}

// ParseEvent decodes a single log line. The bool result is false for
// blank lines, lines that do not start with '{', JSON that fails to
// parse, and objects without the required cmd field. A missing ts is
// filled with the current time so downstream records always carry one.
func ParseEvent(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Event{}, false
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return Event{}, false
	}
	if w.Cmd == nil {
		return Event{}, false
	}

	evt := Event{Cmd: *w.Cmd}
	if w.TS != nil {
		evt.TS = *w.TS
	} else {
		evt.TS = Now()
	}
	if w.Exit != nil {
		evt.Exit = *w.Exit
	}
	if w.CWD != nil {
		evt.CWD = *w.CWD
	}
	if w.Out != nil {
		evt.Out = *w.Out
	}
	return evt, true
}

// Now returns the current time as Unix seconds with fractional
// precision, the same representation the shell hook writes.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
