// Package prompt builds the model-facing text for a planning request.
//
// Hosted chat backends get a system prompt plus a slim JSON payload, or
// the single wrapped template, depending on their API shape. Local
// models get a tighter hand-formatted prompt with hard caps on every
// section to fit small context windows.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"sidecar/internal/extract"
	"sidecar/internal/plan"
)

const systemPrompt = `You are sidecar, an AI copilot for pentesting/CTFs. Given the terminal context (recent events, last command, parsed facts), propose actionable next steps. Respond ONLY as strict JSON matching this schema:
{"next_actions":[{"cmd":"","reason":"","noise":"low|med|high","safety":"read-only|intrusive|exploit"}],"notes":["..."],"escalation_paths":["..."]}
Be concise and avoid repeating identical suggestions.`

const hostedTemplate = `You are SIDEcar, a penetration-testing copilot. You see a running shell session for a CTF event.
You will propose concrete next steps based on:
- the last command and exit code or output
- entities extracted from recent stdout/stderr and files (IPs, URLs, ports, banners, CVEs, credentials, errors, etc.)
- brief knowledge snippets provided

STRICT OUTPUT: Return ONLY JSON matching this schema:
{
  "next_actions":[{"cmd":"", "reason":"", "noise":"low|med|high", "safety":"read-only|intrusive|exploit"}],
  "notes": ["..."],
  "escalation_paths": ["..."]
}

Guidelines:
- NEVER auto-execute. All actions are suggestions.
- Default to read-only reconnaissance when profile is "prod-safe".
- Use the discovered entities and prior findings to chain meaningful follow-ups.
- Keep noise low unless the profile is "ctf".
- When credentials or CVEs are present, suggest safe validation or triage steps before exploitation.
- Keep 3-6 next_actions max, ordered by value.
- If there is an error (timeouts, refused, auth errors), suggest a specific troubleshooting step.

INPUT:
%s
`

const localTemplate = `You are a penetration testing copilot. Based ONLY on the context below,
propose the next shell commands to run. Be concise and pragmatic.

Output STRICT JSON with the following shape and NOTHING else:

{
  "next_actions": [{"cmd": "...", "reason": "...", "noise": "low|med|high", "safety": "read-only|intrusive|exploit"}],
  "notes": ["..."],
  "escalation_paths": ["..."]
}

Guidelines:
- Prefer low-noise, read-only enumeration first.
- Use context from previous commands, artifacts, and retrieved notes.
- Do not invent targets or credentials; rely on provided facts.
- If no stdout/stderr was captured, suggest re-running via the capture wrapper.
- Keep 'cmd' runnable as-is in a typical Kali shell.

Context:
- cwd: %s
- last_cmd: %s
- last_exit: %d

Facts (parsed):
%s

Recent:
%s

Methodology notes:
%s`

// Caps applied when formatting a request for a local model.
const (
	localSnippets   = 4
	localTitleMax   = 80
	localGistMax    = 220
	localRecent     = 6
	localCmdMax     = 140
	localFactsMax   = 1600
	hostedSnippets  = 3
	hostedRecent    = 6
	payloadSnippets = 4
	payloadRecent   = 8
)

// snippetPayload is the wire projection of a retrieved snippet.
type snippetPayload struct {
	Title  string `json:"title"`
	Gist   string `json:"gist"`
	CiteID string `json:"cite_id"`
}

// userPayload is the slim JSON body sent alongside the system prompt.
type userPayload struct {
	Profile  string             `json:"profile"`
	LastCmd  string             `json:"last_cmd"`
	CWD      string             `json:"cwd"`
	Exit     int                `json:"exit"`
	Facts    extract.FactSet    `json:"parsed_facts"`
	Recent   []plan.RecentEvent `json:"recent_events"`
	Snippets []snippetPayload   `json:"retrieved_snippets"`
}

// hostedPayload is the compact blob spliced into hostedTemplate.
type hostedPayload struct {
	Profile    string           `json:"profile"`
	LastCmd    string           `json:"last_cmd"`
	Exit       int              `json:"exit"`
	CWD        string           `json:"cwd"`
	Facts      extract.FactSet  `json:"facts"`
	Snippets   []snippetPayload `json:"retrieved_snippets"`
	RecentCmds []string         `json:"recent_cmds"`
}

// System returns the fixed system prompt for chat-style backends.
func System() string {
	return systemPrompt
}

// UserJSON serializes the request essentials for a chat-style backend:
// the last eight events and the first four snippets.
func UserJSON(req plan.Request) string {
	recent := lastEvents(req.RecentEvents, payloadRecent)
	if recent == nil {
		recent = []plan.RecentEvent{}
	}
	return marshalCompact(userPayload{
		Profile:  req.Profile,
		LastCmd:  req.LastCmd,
		CWD:      req.CWD,
		Exit:     req.Exit,
		Facts:    req.Facts,
		Recent:   recent,
		Snippets: projectSnippets(req.Snippets, payloadSnippets),
	})
}

// Hosted wraps the compact payload in the full copilot template for
// backends that take one combined prompt.
func Hosted(req plan.Request) string {
	cmds := make([]string, 0, hostedRecent)
	for _, e := range lastEvents(req.RecentEvents, hostedRecent) {
		cmds = append(cmds, e.Cmd)
	}
	blob := marshalCompact(hostedPayload{
		Profile:    req.Profile,
		LastCmd:    req.LastCmd,
		Exit:       req.Exit,
		CWD:        req.CWD,
		Facts:      req.Facts,
		Snippets:   projectSnippets(req.Snippets, hostedSnippets),
		RecentCmds: cmds,
	})
	return fmt.Sprintf(hostedTemplate, blob)
}

// Local formats a compact instruction prompt for small local models.
// Every section is hard-capped to respect tight context windows.
func Local(req plan.Request) string {
	var snippetLines []string
	for _, s := range req.Snippets {
		if len(snippetLines) == localSnippets {
			break
		}
		gist := strings.ReplaceAll(clip(s.Gist, localGistMax), "\n", " ")
		snippetLines = append(snippetLines, fmt.Sprintf("- %s: %s", clip(s.Title, localTitleMax), gist))
	}

	var recentLines []string
	for _, e := range lastEvents(req.RecentEvents, localRecent) {
		recentLines = append(recentLines, fmt.Sprintf("- rc=%d :: %s", e.Exit, clip(e.Cmd, localCmdMax)))
	}

	facts := clip(marshalCompact(req.Facts), localFactsMax)
	out := fmt.Sprintf(localTemplate,
		req.CWD, req.LastCmd, req.Exit,
		facts,
		strings.Join(recentLines, "\n"),
		strings.Join(snippetLines, "\n"),
	)
	return strings.TrimSpace(out)
}

func projectSnippets(snips []plan.SnippetRef, n int) []snippetPayload {
	out := make([]snippetPayload, 0, n)
	for _, s := range snips {
		if len(out) == n {
			break
		}
		out = append(out, snippetPayload{Title: s.Title, Gist: s.Gist, CiteID: s.ID})
	}
	return out
}

func lastEvents(events []plan.RecentEvent, n int) []plan.RecentEvent {
	if len(events) > n {
		return events[len(events)-n:]
	}
	return events
}

// marshalCompact renders v on one line without HTML escaping, so URLs
// with query strings survive verbatim in the prompt.
func marshalCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
