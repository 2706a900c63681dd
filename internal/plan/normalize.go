package plan

import (
	"fmt"
	"strings"
)

// EmptyResponseNote is the fixed marker recorded when a backend returns
// nothing usable.
const EmptyResponseNote = "empty response"

// Normalize coerces a backend's raw result into a well-formed Plan.
// Free text becomes a note, emptiness becomes the fixed marker, failure
// reasons become notes, and advisory notes are appended in every case.
// Normalize never invents a command: a structured entry without usable
// command text is dropped, not padded.
func Normalize(r RawResult) Plan {
	var p Plan
	switch r.Kind {
	case RawStructured:
		p = fromObject(r.Value)
	case RawText:
		p = New()
		if s := strings.TrimSpace(r.Text); s != "" {
			p.Notes = append(p.Notes, s)
		} else {
			p.Notes = append(p.Notes, EmptyResponseNote)
		}
	case RawFailure:
		p = New()
		p.Notes = append(p.Notes, r.Reasons...)
	default:
		p = New()
		p.Notes = append(p.Notes, EmptyResponseNote)
	}
	p.Notes = append(p.Notes, r.Notes...)
	return p
}

// fromObject shapes a decoded model object. "actions" is accepted as an
// alias when "next_actions" is missing or empty; only object entries
// count; noise and safety default when absent and are lowercased when
// given.
func fromObject(obj map[string]any) Plan {
	p := New()
	if obj == nil {
		p.Notes = append(p.Notes, EmptyResponseNote)
		return p
	}

	na := obj["next_actions"]
	if list, ok := na.([]any); !ok || len(list) == 0 {
		na = obj["actions"]
	}
	if list, ok := na.([]any); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			s := Suggestion{
				Cmd:    strings.TrimSpace(asString(m["cmd"])),
				Reason: strings.TrimSpace(asString(m["reason"])),
				Noise:  labelOr(m["noise"], "low"),
				Safety: labelOr(m["safety"], "read-only"),
			}
			if s.Cmd == "" {
				continue
			}
			p.NextActions = append(p.NextActions, s)
		}
	}

	p.Notes = appendStringish(p.Notes, obj["notes"])
	p.EscalationPaths = appendStringish(p.EscalationPaths, obj["escalation_paths"])
	return p
}

// appendStringish accepts a sequence or a single string and appends the
// coerced elements to dst.
func appendStringish(dst []string, v any) []string {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			raw := asString(e)
			if raw == "" {
				continue
			}
			dst = append(dst, strings.TrimSpace(raw))
		}
	case string:
		if t != "" {
			dst = append(dst, strings.TrimSpace(t))
		}
	}
	return dst
}

func labelOr(v any, def string) string {
	raw := asString(v)
	if raw == "" {
		return def
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
