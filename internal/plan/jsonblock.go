package plan

import (
	"encoding/json"
	"strings"
)

// ExtractJSONBlock pulls the widest {...} span out of s and decodes it
// as an object. Models routinely wrap their JSON in prose; the span from
// the first opening brace to the last closing brace covers the payload
// in every wrapping seen so far. Returns false when no span exists or
// the span does not decode.
func ExtractJSONBlock(s string) (map[string]any, bool) {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first == -1 || last <= first {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s[first:last+1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
