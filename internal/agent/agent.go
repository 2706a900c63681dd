// Package agent runs the sidecar orchestrator: it tails the session
// log, turns each command event into facts, pulls methodology snippets
// for the derived topics, asks the configured backend for a plan, and
// appends one audit record per event. Events are handled strictly one
// at a time; the only failure that stops the loop is an audit append
// going wrong, because at that point the durable trail can no longer
// be trusted.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"sidecar/internal/extract"
	"sidecar/internal/logging"
	"sidecar/internal/plan"
	"sidecar/internal/retrieval"
	"sidecar/internal/session"
)

const (
	// pollInterval is the cadence between session log reads when the
	// watcher stays quiet.
	pollInterval = 350 * time.Millisecond
	// readErrorPause is how long the loop backs off after a transient
	// session log read failure.
	readErrorPause = time.Second
	// recentWindow is how many audit records ride along as context.
	recentWindow = 12
	// snippetsPerTopic and snippetCap bound retrieval per event.
	snippetsPerTopic = 1
	snippetCap       = 4
)

// DryRunNote marks plans produced without a model call.
const DryRunNote = "dry-run enabled: no model call"

// Planner produces a raw plan for a request. *provider.Gateway is the
// production implementation.
type Planner interface {
	Plan(ctx context.Context, req plan.Request) plan.RawResult
}

// Options wire up an Agent. SessionLog and Audit are required; Store,
// Planner and Watcher may be nil (no retrieval, dry-run only, poll
// only).
type Options struct {
	Profile    string
	DryRun     bool
	SessionLog string
	Audit      *AuditLog
	Store      *retrieval.Store
	Planner    Planner
	Watcher    *session.Watcher
	Out        io.Writer
}

// Agent is the orchestrator loop.
type Agent struct {
	profile string
	dryRun  bool
	tailer  *session.Tailer
	watcher *session.Watcher
	store   *retrieval.Store
	planner Planner
	audit   *AuditLog
	out     io.Writer
}

// New builds an Agent from options.
func New(opts Options) *Agent {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Agent{
		profile: opts.Profile,
		dryRun:  opts.DryRun,
		tailer:  session.NewTailer(opts.SessionLog),
		watcher: opts.Watcher,
		store:   opts.Store,
		planner: opts.Planner,
		audit:   opts.Audit,
		out:     out,
	}
}

// Run processes session events until ctx is canceled. Cancellation is
// a normal stop and returns nil; the only error Run returns is a
// failed audit append.
func (a *Agent) Run(ctx context.Context) error {
	logging.Agent("watching %s profile=%s dry_run=%v", a.tailer.Path(), a.profile, a.dryRun)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if a.watcher != nil {
		a.watcher.Start(ctx)
		defer a.watcher.Stop()
		wake = a.watcher.Wake()
	}

	for {
		if err := a.drain(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

// drain handles everything newly appended to the session log. A read
// failure pauses briefly and leaves the cursor where it was, so the
// next pass retries the same region.
func (a *Agent) drain(ctx context.Context) error {
	lines, err := a.tailer.ReadNew()
	if err != nil {
		logging.SessionWarn("session log read failed: %v", err)
		select {
		case <-ctx.Done():
		case <-time.After(readErrorPause):
		}
		return nil
	}

	for _, line := range lines {
		if ctx.Err() != nil {
			return nil
		}
		evt, ok := session.ParseEvent(line)
		if !ok {
			logging.SessionDebug("skipping malformed line: %.80s", line)
			continue
		}
		if err := a.handle(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// handle runs the full pipeline for one event and appends its audit
// record.
func (a *Agent) handle(ctx context.Context, evt session.Event) error {
	trace := uuid.NewString()[:8]
	log := logging.WithRequestID(logging.CategoryAgent, trace)
	timer := logging.StartTimer(logging.CategoryAgent, "handle_event")
	defer timer.Stop()

	log.Info("event cmd=%q exit=%d cwd=%s", evt.Cmd, evt.Exit, evt.CWD)

	facts := a.collectFacts(evt)
	topics := extract.DeriveTopics(facts)
	snippets := a.gatherSnippets(topics)
	log.Debug("topics=%v snippets=%d", topics, len(snippets))

	req := plan.Request{
		Profile:      a.profile,
		RecentEvents: a.audit.Recent(recentWindow),
		LastCmd:      evt.Cmd,
		CWD:          evt.CWD,
		Exit:         evt.Exit,
		Facts:        facts,
		Snippets:     snippets,
	}

	var result plan.Plan
	if a.dryRun {
		result = plan.New()
		result.Notes = append(result.Notes, DryRunNote)
	} else if a.planner == nil {
		result = plan.New()
		result.Notes = append(result.Notes, "no planner configured")
	} else {
		result = plan.Normalize(a.planner.Plan(ctx, req))
	}

	rec := AuditRecord{
		TS:    evt.TS,
		Cmd:   evt.Cmd,
		CWD:   evt.CWD,
		Exit:  evt.Exit,
		Facts: facts,
		Plan:  result,
	}
	if err := a.audit.Append(rec); err != nil {
		logging.AuditError("append failed, stopping: %v", err)
		return err
	}

	a.printSummary(result)
	return nil
}

// collectFacts merges what the command string, its detected output
// files, and the captured stdout/stderr file reveal.
func (a *Agent) collectFacts(evt session.Event) extract.FactSet {
	facts := extract.FromText(evt.Cmd)
	for _, path := range session.DetectOutputPaths(evt.Cmd, evt.CWD) {
		facts.Merge(extract.FromFile(path))
	}
	if evt.Out != "" {
		if _, err := os.Stat(evt.Out); err == nil {
			facts.Merge(extract.FromFile(evt.Out))
		}
	}
	return facts
}

// gatherSnippets pulls one snippet per topic, capped overall. Retrieval
// trouble means fewer snippets, never a failed event.
func (a *Agent) gatherSnippets(topics []string) []plan.SnippetRef {
	if a.store == nil {
		return nil
	}
	var refs []plan.SnippetRef
	for _, topic := range topics {
		hits, err := a.store.Search(topic, snippetsPerTopic)
		if err != nil {
			logging.RetrievalError("search %q: %v", topic, err)
			continue
		}
		for _, h := range hits {
			refs = append(refs, plan.SnippetRef{
				ID:    h.ID,
				Title: h.Title,
				Gist:  h.Gist,
				Tags:  h.Tags,
				Score: h.Score,
			})
		}
	}
	if len(refs) > snippetCap {
		refs = refs[:snippetCap]
	}
	return refs
}

var (
	actionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow
)

// printSummary writes the operator-facing digest of a plan.
func (a *Agent) printSummary(p plan.Plan) {
	for i, na := range p.NextActions {
		fmt.Fprintf(a.out, "%s - %s (noise=%s, safety=%s)\n",
			actionStyle.Render(fmt.Sprintf("[%d] %s", i+1, na.Cmd)),
			na.Reason, na.Noise, na.Safety)
	}
	if len(p.Notes) > 0 {
		fmt.Fprintf(a.out, "%s %s\n", noteStyle.Render("Notes:"), strings.Join(p.Notes, "; "))
	}
}
