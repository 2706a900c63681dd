// Package ui renders the most recent audit record as a live suggestion
// pane. It follows the audit log by polling: every half second it
// re-stats the file and re-reads the last record when the mtime moves.
// The pane consumes only the audit record schema, never the agent's
// internals, so it can run in a separate process from the agent.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"sidecar/internal/plan"
)

const (
	// refreshEvery is how often the pane re-stats the audit log.
	refreshEvery = 500 * time.Millisecond

	// tailWindow is how many bytes from the end of the audit log are
	// scanned for the last record. Audit lines are small; one window
	// always covers several records.
	tailWindow = 4096

	// chromeHeight is the rows consumed by the title and status lines.
	chromeHeight = 2
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")) // pink
	statusStyle = lipgloss.NewStyle().Faint(true)
)

// tickMsg fires on every refresh interval.
type tickMsg time.Time

// auditLine is the slice of an audit record the pane cares about.
// Unknown fields in the record are ignored so the pane keeps working
// when the agent grows the schema.
type auditLine struct {
	Cmd  string    `json:"cmd"`
	Plan plan.Plan `json:"plan"`
}

// Model is the bubbletea model for the suggestion pane.
type Model struct {
	auditPath string

	viewport viewport.Model
	renderer *glamour.TermRenderer

	last      *auditLine
	lastMtime time.Time

	width  int
	height int
}

// New builds a pane that follows the audit log at auditPath.
func New(auditPath string) Model {
	vp := viewport.New(80, 20) // resized on the first WindowSizeMsg
	return Model{
		auditPath: auditPath,
		viewport:  vp,
		width:     80,
		height:    22,
	}
}

// Init schedules the first refresh.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles quit keys, terminal resizes, and refresh ticks. All
// other messages fall through to the viewport so its default scroll
// keys keep working.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - chromeHeight
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		m.renderer = nil // rebuilt lazily at the new wrap width
		m.rerender()
		return m, nil

	case tickMsg:
		m.maybeReload()
		return m, tick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View stacks the title, the follow status, and the detail viewport.
func (m Model) View() string {
	status := "following: " + m.auditPath
	if m.last != nil {
		last := m.last.Cmd
		if last == "" {
			last = "—"
		}
		status += "    |    last: " + last
	}
	return titleStyle.Render("sidecar suggestions") + "\n" +
		statusStyle.Render(status) + "\n" +
		m.viewport.View()
}

// maybeReload re-reads the last audit record when the log's mtime has
// moved since the previous reload. A missing or unreadable log leaves
// the pane unchanged.
func (m *Model) maybeReload() {
	info, err := os.Stat(m.auditPath)
	if err != nil || info.IsDir() {
		return
	}
	if !info.ModTime().After(m.lastMtime) {
		return
	}
	m.lastMtime = info.ModTime()
	if line := lastAuditLine(m.auditPath); line != nil {
		m.last = line
		m.rerender()
		m.viewport.GotoTop()
	}
}

// rerender refreshes the viewport content from the cached record.
func (m *Model) rerender() {
	if m.last == nil {
		return
	}
	m.viewport.SetContent(m.renderDetail(m.last))
}

// renderDetail renders the record's markdown through glamour, falling
// back to the raw markdown when rendering is unavailable.
func (m *Model) renderDetail(line *auditLine) string {
	md := detailMarkdown(line)
	if m.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.width),
		)
		if err != nil {
			return md
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// detailMarkdown formats one audit record as the pane's detail body.
func detailMarkdown(line *auditLine) string {
	var b strings.Builder

	last := strings.TrimSpace(line.Cmd)
	if last == "" {
		last = "—"
	}
	fmt.Fprintf(&b, "**last:** `%s`\n\n", last)

	if len(line.Plan.Notes) > 0 {
		fmt.Fprintf(&b, "**notes:** %s\n\n", strings.Join(line.Plan.Notes, " "))
	}

	b.WriteString("## suggestions\n\n")
	if len(line.Plan.NextActions) == 0 {
		b.WriteString("No suggestions yet.\n")
		return b.String()
	}
	for i, action := range line.Plan.NextActions {
		fmt.Fprintf(&b, "%d. `%s`\n\n", i+1, flatten(action.Cmd))
		fmt.Fprintf(&b, "   why: %s  noise: %s  safety: %s\n\n",
			flatten(action.Reason), flatten(action.Noise), flatten(action.Safety))
	}
	return b.String()
}

// flatten collapses a possibly multi-line field onto one line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lastAuditLine scans the tail of the audit log for the most recent
// parseable record. It reads at most tailWindow bytes; a record whose
// line is longer than the window is treated as absent.
func lastAuditLine(path string) *auditLine {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return nil
	}
	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil
	}

	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		raw := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(raw, "{") {
			continue
		}
		var rec auditLine
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		return &rec
	}
	return nil
}
