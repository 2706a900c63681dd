package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventFullRecord(t *testing.T) {
	line := `{"ts": 1710000000.25, "cmd": "nmap -sV 10.0.0.5", "exit": 0, "cwd": "/root/eng", "out": "Starting Nmap"}`

	evt, ok := ParseEvent(line)
	require.True(t, ok)
	assert.Equal(t, Event{
		TS:   1710000000.25,
		Cmd:  "nmap -sV 10.0.0.5",
		Exit: 0,
		CWD:  "/root/eng",
		Out:  "Starting Nmap",
	}, evt)
}

func TestParseEventDefaultsMissingFields(t *testing.T) {
	evt, ok := ParseEvent(`{"cmd": "whoami"}`)
	require.True(t, ok)

	assert.Equal(t, "whoami", evt.Cmd)
	assert.Equal(t, 0, evt.Exit)
	assert.Empty(t, evt.CWD)
	assert.Empty(t, evt.Out)
	assert.InDelta(t, float64(time.Now().Unix()), evt.TS, 5)
}

func TestParseEventRejectsMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace only", "   \t"},
		{"plain shell output", "permission denied"},
		{"brace not leading", `echo {"cmd": "x"}`},
		{"truncated json", `{"cmd": "nmap`},
		{"json array", `["cmd", "ls"]`},
		{"missing cmd", `{"ts": 1710000000, "exit": 0}`},
		{"null cmd", `{"cmd": null}`},
		{"numeric cmd", `{"cmd": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseEvent(tt.line)
			assert.False(t, ok)
		})
	}
}

func TestParseEventTrimsSurroundingWhitespace(t *testing.T) {
	evt, ok := ParseEvent("  {\"cmd\": \"id\", \"exit\": 1}\r")
	require.True(t, ok)
	assert.Equal(t, "id", evt.Cmd)
	assert.Equal(t, 1, evt.Exit)
}

func TestParseEventKeepsEmptyCommand(t *testing.T) {
	// An empty cmd string is present, just empty; only a missing field
	// marks the line malformed.
	evt, ok := ParseEvent(`{"cmd": ""}`)
	require.True(t, ok)
	assert.Empty(t, evt.Cmd)
}
