// Package plan defines the canonical planning contract: the request
// assembled for each session event, the tagged raw result a backend
// returns, and the normalized Plan that lands in the audit log.
package plan

import "sidecar/internal/extract"

// Suggestion is one proposed follow-up command. Noise and safety are
// advisory labels the operator filters on; they default rather than
// block when a backend omits them.
type Suggestion struct {
	Cmd    string `json:"cmd"`
	Reason string `json:"reason"`
	Noise  string `json:"noise"`
	Safety string `json:"safety"`
}

// Plan is the canonical output shape. All three fields are always
// present, possibly empty; a Plan is never nil-sliced so the audit log
// marshals [] rather than null.
type Plan struct {
	NextActions     []Suggestion `json:"next_actions"`
	Notes           []string     `json:"notes"`
	EscalationPaths []string     `json:"escalation_paths"`
}

// New returns a structurally complete empty Plan.
func New() Plan {
	return Plan{
		NextActions:     []Suggestion{},
		Notes:           []string{},
		EscalationPaths: []string{},
	}
}

// RecentEvent is the projection of a prior audit record carried in the
// planning request for short-term context.
type RecentEvent struct {
	TS   string `json:"ts"`
	Cmd  string `json:"cmd"`
	CWD  string `json:"cwd"`
	Exit int    `json:"exit"`
}

// SnippetRef is a retrieved knowledge snippet referenced by the request.
type SnippetRef struct {
	ID    string
	Title string
	Gist  string
	Tags  string
	Score float64
}

// Request is the full payload assembled for one planning call.
type Request struct {
	Profile      string
	RecentEvents []RecentEvent
	LastCmd      string
	CWD          string
	Exit         int
	Facts        extract.FactSet
	Snippets     []SnippetRef
}

// Rewrite returns a deep copy of the request with fn applied to every
// string field, including all fact leaves and snippet text. Exit codes
// and scores pass through. Used to scrub a request before cloud egress.
func (r Request) Rewrite(fn func(string) string) Request {
	out := Request{
		Profile: fn(r.Profile),
		LastCmd: fn(r.LastCmd),
		CWD:     fn(r.CWD),
		Exit:    r.Exit,
		Facts:   r.Facts.Rewrite(fn),
	}
	for _, ev := range r.RecentEvents {
		out.RecentEvents = append(out.RecentEvents, RecentEvent{
			TS:   fn(ev.TS),
			Cmd:  fn(ev.Cmd),
			CWD:  fn(ev.CWD),
			Exit: ev.Exit,
		})
	}
	for _, sn := range r.Snippets {
		out.Snippets = append(out.Snippets, SnippetRef{
			ID:    fn(sn.ID),
			Title: fn(sn.Title),
			Gist:  fn(sn.Gist),
			Tags:  fn(sn.Tags),
			Score: sn.Score,
		})
	}
	return out
}

// RawKind tags the shape of an unnormalized backend result.
type RawKind int

const (
	// RawEmpty marks an absent or contentless response.
	RawEmpty RawKind = iota
	// RawStructured carries a decoded JSON object.
	RawStructured
	// RawText carries a free-text response that held no structured block.
	RawText
	// RawFailure carries machine-parseable reason codes for a failed call.
	RawFailure
)

// RawResult is what a backend hands back: exactly one of the variants,
// plus optional advisory notes (model pulls, fallback hops) that ride
// along regardless of outcome.
type RawResult struct {
	Kind    RawKind
	Value   map[string]any
	Text    string
	Reasons []string
	Notes   []string
}

// Structured wraps a decoded object.
func Structured(v map[string]any) RawResult {
	return RawResult{Kind: RawStructured, Value: v}
}

// TextResult wraps a free-text response.
func TextResult(s string) RawResult {
	return RawResult{Kind: RawText, Text: s}
}

// Empty marks a response with no content.
func Empty() RawResult {
	return RawResult{Kind: RawEmpty}
}

// Failure wraps one or more reason codes.
func Failure(reasons ...string) RawResult {
	return RawResult{Kind: RawFailure, Reasons: reasons}
}

// WithNotes returns a copy of r with advisory notes appended.
func (r RawResult) WithNotes(notes ...string) RawResult {
	out := r
	out.Notes = append(append([]string{}, r.Notes...), notes...)
	return out
}
