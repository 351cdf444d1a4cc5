package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"otto/pkg/eventlog"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic refresh from the event log and lock file.
type tickMsg time.Time

// eventsMsg carries the refreshed event feed.
type eventsMsg []eventlog.Entry

// healthMsg carries the refreshed engine health snapshot.
type healthMsg EngineHealth

// countsMsg carries per-kind event totals.
type countsMsg map[string]int

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchEventsCmd returns a tea.Cmd that reads the event feed.
func fetchEventsCmd(kind string) tea.Cmd {
	return func() tea.Msg {
		entries, _ := fetchEvents(defaultStateDBPath(), kind)
		return eventsMsg(entries)
	}
}

// fetchHealthCmd returns a tea.Cmd that reads engine health.
func fetchHealthCmd() tea.Cmd {
	return func() tea.Msg {
		return healthMsg(fetchHealth())
	}
}

// fetchCountsCmd returns a tea.Cmd that reads per-kind totals.
func fetchCountsCmd() tea.Cmd {
	return func() tea.Msg {
		return countsMsg(fetchCounts(defaultStateDBPath()))
	}
}

// ViewType represents different views in the dashboard.
type ViewType int

const (
	// FeedView shows the live event feed.
	FeedView ViewType = iota
	// HealthView shows engine liveness and event totals.
	HealthView
)

// kindFilters is the cycle order for the feed's kind filter. The empty
// string means no filter.
var kindFilters = []string{
	"",
	"call",
	"call_utterance",
	"notification",
	"calendar_urgent",
	"action_executed",
	"action_refused",
	"operator_note",
	"handler_fault",
}

// Model is the Bubble Tea model for the otto dashboard.
type Model struct {
	activeView ViewType

	events []eventlog.Entry
	health EngineHealth
	counts map[string]int

	filterIdx int

	width  int
	height int
}

// newModel creates a new Model initialized with FeedView active.
func newModel() Model {
	return Model{activeView: FeedView}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchEventsCmd(m.kindFilter()), fetchHealthCmd(), fetchCountsCmd(), tickCmd())
}

// kindFilter returns the active kind filter, or "" for all kinds.
func (m Model) kindFilter() string {
	return kindFilters[m.filterIdx%len(kindFilters)]
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case eventsMsg:
		m.events = []eventlog.Entry(msg)

	case healthMsg:
		m.health = EngineHealth(msg)

	case countsMsg:
		m.counts = map[string]int(msg)

	case tickMsg:
		return m, tea.Batch(fetchEventsCmd(m.kindFilter()), fetchHealthCmd(), fetchCountsCmd(), tickCmd())
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" || key == "q" {
		return m, tea.Quit
	}

	switch m.activeView {
	case HealthView:
		if key == "esc" {
			m.activeView = FeedView
		}
	default: // FeedView
		switch key {
		case "s":
			m.activeView = HealthView
		case "f":
			m.filterIdx = (m.filterIdx + 1) % len(kindFilters)
			return m, fetchEventsCmd(m.kindFilter())
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	statusBar := m.renderStatusBar()

	switch m.activeView {
	case HealthView:
		return statusBar + "\n" + m.renderHealthView()
	default:
		return statusBar + "\n" + m.renderFeedView()
	}
}

// renderStatusBar renders engine liveness and the active filter.
func (m Model) renderStatusBar() string {
	theme := DefaultTheme()

	var engineStatus string
	switch {
	case m.health.Alive && m.health.HeartbeatFresh:
		engineStatus = lipgloss.NewStyle().Foreground(theme.Success).Render("engine: online")
	case m.health.Alive:
		engineStatus = lipgloss.NewStyle().Foreground(theme.Warning).Render("engine: wedged")
	default:
		engineStatus = lipgloss.NewStyle().Foreground(theme.Error).Render("engine: offline")
	}

	filter := m.kindFilter()
	if filter == "" {
		filter = "all"
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		engineStatus,
		lipgloss.NewStyle().Render(" | Filter: "),
		lipgloss.NewStyle().Foreground(theme.Primary).Render(filter),
		lipgloss.NewStyle().Render(" | Events: "),
		lipgloss.NewStyle().Foreground(theme.Secondary).Render(fmt.Sprintf("%d", len(m.events))),
		lipgloss.NewStyle().Foreground(theme.Muted).Render("   f: filter  s: status  q: quit"),
	)
}

// renderFeedView renders the event feed, oldest at the top.
func (m Model) renderFeedView() string {
	theme := DefaultTheme()

	if len(m.events) == 0 {
		return lipgloss.NewStyle().Foreground(theme.Muted).Padding(1, 0).Render("No events yet")
	}

	var b strings.Builder
	for i := range m.events {
		b.WriteString(renderFeedLine(theme, &m.events[i]))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFeedLine renders one event feed line.
func renderFeedLine(theme Theme, e *eventlog.Entry) string {
	ts := e.CreatedAt.Format("15:04:05")
	kind := lipgloss.NewStyle().Foreground(kindColor(theme, e.Kind)).Render(fmt.Sprintf("%-18s", e.Kind))

	detail := e.Payload
	if e.Caller != "" {
		detail = e.Caller + " " + detail
	}
	return fmt.Sprintf("%s  %s  %s", ts, kind, detail)
}

// renderHealthView renders engine liveness and per-kind event totals.
func (m Model) renderHealthView() string {
	theme := DefaultTheme()
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary)

	sections := []string{
		titleStyle.Render("Engine"),
		m.renderEngineSection(),
		titleStyle.Render("Event totals"),
		m.renderCountsSection(),
		lipgloss.NewStyle().Foreground(theme.Muted).Render("esc: back"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderEngineSection renders PID, liveness, and heartbeat age.
func (m Model) renderEngineSection() string {
	state := "offline"
	if m.health.Alive {
		state = "running"
	}

	lines := []string{
		fmt.Sprintf("PID: %d", m.health.PID),
		fmt.Sprintf("State: %s", state),
	}
	if !m.health.LastBeat.IsZero() {
		age := time.Since(m.health.LastBeat).Round(time.Second)
		fresh := "stale"
		if m.health.HeartbeatFresh {
			fresh = "fresh"
		}
		lines = append(lines, fmt.Sprintf("Heartbeat: %s (%s ago)", fresh, age))
	} else {
		lines = append(lines, "Heartbeat: none")
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderCountsSection renders per-kind totals as a table, filter cycle
// order first, everything else folded into "other".
func (m Model) renderCountsSection() string {
	if len(m.counts) == 0 {
		return "none"
	}

	rows := make([]table.Row, 0, len(kindFilters))
	for _, kind := range kindFilters[1:] {
		if n, ok := m.counts[kind]; ok {
			rows = append(rows, table.Row{kind, strconv.Itoa(n)})
		}
	}
	other := 0
	known := make(map[string]bool, len(kindFilters))
	for _, kind := range kindFilters {
		known[kind] = true
	}
	for kind, n := range m.counts {
		if !known[kind] {
			other += n
		}
	}
	if other > 0 {
		rows = append(rows, table.Row{"other", strconv.Itoa(other)})
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "KIND", Width: 18},
			{Title: "COUNT", Width: 8},
		}),
		table.WithRows(rows),
		table.WithHeight(len(rows)),
	)
	return t.View()
}
