// internal/tui/monitor.go
//
// Live pipeline monitor. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The monitor owns no pipeline state. It polls the executor on a timer
// and renders whatever snapshot it gets back.

package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelworks/sluice/internal/action"
	"github.com/kestrelworks/sluice/internal/pipeline"
)

const monitorRefreshInterval = 500 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("241"))

	pendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	processingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	completedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			MarginTop(1)
)

type actionRow struct {
	ID       string
	Function string
	Status   action.Status
	Elapsed  time.Duration
	Err      string
	Created  time.Time
}

type snapshotMsg struct {
	rows      []actionRow
	queued    int
	available int
	executing bool
	stopped   bool
}

type tickMsg time.Time

// Monitor is the bubbletea model. It reads from the executor, never
// writes to it, except for the stop hotkey.
type Monitor struct {
	executor *pipeline.Executor
	spinner  spinner.Model
	rows     []actionRow

	queued    int
	available int
	executing bool
	stopped   bool
	width     int
}

// NewMonitor creates a monitor over a running executor.
func NewMonitor(executor *pipeline.Executor) *Monitor {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = processingStyle
	return &Monitor{executor: executor, spinner: sp}
}

// Init starts the spinner and the poll timer.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(monitorRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// poll snapshots the executor off the UI loop.
func (m *Monitor) poll() tea.Cmd {
	executor := m.executor
	return func() tea.Msg {
		actions := executor.Actions()
		rows := make([]actionRow, 0, len(actions))
		for _, a := range actions {
			row := actionRow{
				ID:       a.ID(),
				Function: requestFunction(a),
				Status:   a.Status(),
				Elapsed:  a.ExecutionTime(),
				Created:  a.CreatedAt(),
			}
			if err := a.Err(); err != nil {
				row.Err = err.Error()
			}
			rows = append(rows, row)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Created.Before(rows[j].Created)
		})
		p := executor.Processor()
		return snapshotMsg{
			rows:      rows,
			queued:    p.QueueLen(),
			available: p.Available(),
			executing: p.Executing(),
			stopped:   p.Stopped(),
		}
	}
}

func requestFunction(a *action.Action) string {
	if fn, ok := a.Request()["function"].(string); ok && fn != "" {
		return fn
	}
	return "-"
}

// Update handles messages.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			m.executor.Processor().Stop()
			return m, m.poll()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.poll(), tick())

	case snapshotMsg:
		m.rows = msg.rows
		m.queued = msg.queued
		m.available = msg.available
		m.executing = msg.executing
		m.stopped = msg.stopped
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the action table plus processor counters.
func (m *Monitor) View() string {
	var b strings.Builder

	title := "Sluice Pipeline"
	if m.executing {
		title = m.spinner.View() + " " + title
	} else if m.stopped {
		title += " (stopped)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %-16s %-11s %10s  %s", "ID", "FUNCTION", "STATUS", "ELAPSED", "ERROR")))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(pendingStyle.Render("no actions yet"))
		b.WriteString("\n")
	}
	var completed, failed int
	for _, row := range m.rows {
		switch row.Status {
		case action.StatusCompleted:
			completed++
		case action.StatusFailed:
			failed++
		}
		line := fmt.Sprintf("%-10s %-16s %-11s %10s  %s",
			shortID(row.ID), truncate(row.Function, 16), row.Status, formatElapsed(row.Elapsed), truncate(row.Err, 40))
		b.WriteString(statusStyle(row.Status).Render(line))
		b.WriteString("\n")
	}

	b.WriteString(summaryStyle.Render(fmt.Sprintf(
		"%d total · %d completed · %d failed · %d queued · %d/%d slots free",
		len(m.rows), completed, failed, m.queued, m.available, m.executor.Processor().Capacity())))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s stop processor · q quit"))
	b.WriteString("\n")
	return b.String()
}

func statusStyle(s action.Status) lipgloss.Style {
	switch s {
	case action.StatusProcessing:
		return processingStyle
	case action.StatusCompleted:
		return completedStyle
	case action.StatusFailed:
		return failedStyle
	}
	return pendingStyle
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatElapsed(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

// Run blocks until the user quits the monitor.
func Run(executor *pipeline.Executor) error {
	program := tea.NewProgram(NewMonitor(executor))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: monitor: %w", err)
	}
	return nil
}
