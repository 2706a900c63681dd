package plan

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProseWrappedJSON(t *testing.T) {
	raw := `some text with {"next_actions":[{"cmd":"nmap -sV target"}]} trailing`
	obj, ok := ExtractJSONBlock(raw)
	require.True(t, ok)

	p := Normalize(Structured(obj))

	require.Len(t, p.NextActions, 1)
	got := p.NextActions[0]
	assert.Equal(t, "nmap -sV target", got.Cmd)
	assert.Equal(t, "low", got.Noise)
	assert.Equal(t, "read-only", got.Safety)
	assert.Empty(t, p.Notes)
	assert.Empty(t, p.EscalationPaths)
}

func TestNormalizeEmptyVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  RawResult
	}{
		{name: "empty variant", raw: Empty()},
		{name: "empty text", raw: TextResult("")},
		{name: "whitespace text", raw: TextResult("  \n\t ")},
		{name: "nil structured value", raw: Structured(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(tt.raw)
			assert.Equal(t, []string{EmptyResponseNote}, p.Notes)
			assert.Empty(t, p.NextActions)
		})
	}
}

func TestNormalizeFreeTextBecomesNote(t *testing.T) {
	p := Normalize(TextResult("  try enumerating SMB shares first  "))
	assert.Equal(t, []string{"try enumerating SMB shares first"}, p.Notes)
	assert.Empty(t, p.NextActions)
}

func TestNormalizeDropsBlankCommands(t *testing.T) {
	p := Normalize(Structured(map[string]any{
		"next_actions": []any{
			map[string]any{"cmd": "   "},
			map[string]any{"cmd": "id", "reason": "check user"},
			map[string]any{"reason": "no command at all"},
		},
	}))

	require.Len(t, p.NextActions, 1)
	assert.Equal(t, "id", p.NextActions[0].Cmd)
	assert.Equal(t, "check user", p.NextActions[0].Reason)
}

func TestNormalizeSkipsNonObjectEntries(t *testing.T) {
	p := Normalize(Structured(map[string]any{
		"next_actions": []any{"run nmap", 42.0, map[string]any{"cmd": "whoami"}},
	}))

	require.Len(t, p.NextActions, 1)
	assert.Equal(t, "whoami", p.NextActions[0].Cmd)
}

func TestNormalizeActionsAlias(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
	}{
		{
			name: "next_actions missing",
			obj: map[string]any{
				"actions": []any{map[string]any{"cmd": "gobuster dir -u https://t"}},
			},
		},
		{
			name: "next_actions empty list",
			obj: map[string]any{
				"next_actions": []any{},
				"actions":      []any{map[string]any{"cmd": "gobuster dir -u https://t"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(Structured(tt.obj))
			require.Len(t, p.NextActions, 1)
			assert.Equal(t, "gobuster dir -u https://t", p.NextActions[0].Cmd)
		})
	}
}

func TestNormalizeLowercasesLabels(t *testing.T) {
	p := Normalize(Structured(map[string]any{
		"next_actions": []any{
			map[string]any{"cmd": "hydra ssh://t", "noise": "HIGH", "safety": "Intrusive"},
		},
	}))

	require.Len(t, p.NextActions, 1)
	assert.Equal(t, "high", p.NextActions[0].Noise)
	assert.Equal(t, "intrusive", p.NextActions[0].Safety)
}

func TestNormalizeNotesAndEscalation(t *testing.T) {
	tests := []struct {
		name    string
		obj     map[string]any
		wantN   []string
		wantEsc []string
	}{
		{
			name:    "sequences",
			obj:     map[string]any{"notes": []any{"a", "", "b"}, "escalation_paths": []any{"root via cron"}},
			wantN:   []string{"a", "b"},
			wantEsc: []string{"root via cron"},
		},
		{
			name:    "single strings coerced",
			obj:     map[string]any{"notes": "one note", "escalation_paths": "one path"},
			wantN:   []string{"one note"},
			wantEsc: []string{"one path"},
		},
		{
			name:    "wrong types ignored",
			obj:     map[string]any{"notes": 7.0, "escalation_paths": map[string]any{"x": 1.0}},
			wantN:   []string{},
			wantEsc: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(Structured(tt.obj))
			if diff := cmp.Diff(tt.wantN, p.Notes); diff != "" {
				t.Errorf("notes (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantEsc, p.EscalationPaths); diff != "" {
				t.Errorf("escalation (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeFailureReasons(t *testing.T) {
	p := Normalize(Failure("ollama_error:server_unreachable"))
	assert.Equal(t, []string{"ollama_error:server_unreachable"}, p.Notes)
	assert.Empty(t, p.NextActions)
}

func TestNormalizeAppendsAdvisoryNotes(t *testing.T) {
	obj := map[string]any{
		"next_actions": []any{map[string]any{"cmd": "smbclient -L //10.0.0.5"}},
	}
	p := Normalize(Structured(obj).WithNotes("pulled model llama3.2:1b"))

	require.Len(t, p.NextActions, 1)
	assert.Equal(t, []string{"pulled model llama3.2:1b"}, p.Notes)

	pf := Normalize(Failure("anthropic_http_error:429").WithNotes("fallback exhausted"))
	assert.Equal(t, []string{"anthropic_http_error:429", "fallback exhausted"}, pf.Notes)
}

func TestNewPlanMarshalsEmptyArrays(t *testing.T) {
	data, err := json.Marshal(New())
	require.NoError(t, err)
	assert.JSONEq(t, `{"next_actions":[],"notes":[],"escalation_paths":[]}`, string(data))
}

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		wantOK bool
	}{
		{name: "bare object", in: `{"a":1}`, wantOK: true},
		{name: "prose wrapped", in: `Sure! Here is the plan: {"a":{"b":1}} hope it helps`, wantOK: true},
		{name: "no braces", in: "no structure here", wantOK: false},
		{name: "empty", in: "", wantOK: false},
		{name: "reversed braces", in: "} backwards {", wantOK: false},
		{name: "two objects widen into garbage", in: `{"a":1} and {"b":2}`, wantOK: false},
		{name: "unparseable span", in: "{not json}", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := ExtractJSONBlock(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.NotNil(t, obj)
			}
		})
	}
}

func TestRequestRewrite(t *testing.T) {
	req := Request{
		Profile: "prod-safe",
		LastCmd: "ssh admin@10.0.0.5",
		CWD:     "/opt/engagement",
		Exit:    255,
		RecentEvents: []RecentEvent{
			{TS: "2026-08-01T10:00:00Z", Cmd: "nmap 10.0.0.5", CWD: "/opt", Exit: 0},
		},
		Snippets: []SnippetRef{
			{ID: "abc", Title: "SMB checks", Gist: "try 10.0.0.5 shares", Tags: "network", Score: -1.5},
		},
	}

	masked := req.Rewrite(func(s string) string { return "X" })

	assert.Equal(t, "X", masked.Profile)
	assert.Equal(t, "X", masked.LastCmd)
	assert.Equal(t, 255, masked.Exit)
	require.Len(t, masked.RecentEvents, 1)
	assert.Equal(t, "X", masked.RecentEvents[0].Cmd)
	assert.Equal(t, 0, masked.RecentEvents[0].Exit)
	require.Len(t, masked.Snippets, 1)
	assert.Equal(t, "X", masked.Snippets[0].Gist)
	assert.Equal(t, -1.5, masked.Snippets[0].Score)

	// source untouched
	assert.Equal(t, "ssh admin@10.0.0.5", req.LastCmd)
	assert.Equal(t, "try 10.0.0.5 shares", req.Snippets[0].Gist)
}
