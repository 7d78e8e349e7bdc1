package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-infill/batch"
	"go-infill/theme"
	"go-infill/widgets"
)

const (
	barWidth   = 40
	recentRows = 8
)

var helpKeys = []widgets.KeySection{
	{Keys: []widgets.KeyBinding{
		{Key: "q, ctrl+c", Desc: "stop after running jobs finish"},
	}},
}

// Model shows the progress of a batch run
type Model struct {
	Theme    *theme.Theme
	total    int
	done     int
	failed   int
	recent   []batch.Outcome
	summary  *batch.Summary
	quitting bool

	outcomes <-chan batch.Outcome
	finished <-chan batch.Summary
	cancel   context.CancelFunc
}

// OutcomeMsg carries one finished job
type OutcomeMsg batch.Outcome

// DrainedMsg reports that the outcome channel was closed
type DrainedMsg struct{}

// DoneMsg carries the summary once every job has finished
type DoneMsg batch.Summary

// NewModel watches a run that sends every outcome on outcomes, closes it,
// and then sends the summary on finished
func NewModel(th *theme.Theme, total int, outcomes <-chan batch.Outcome, finished <-chan batch.Summary, cancel context.CancelFunc) Model {
	return Model{
		Theme:    th,
		total:    total,
		outcomes: outcomes,
		finished: finished,
		cancel:   cancel,
	}
}

func ListenForOutcomes(outcomes <-chan batch.Outcome) tea.Cmd {
	return func() tea.Msg {
		out, ok := <-outcomes
		if !ok {
			return DrainedMsg{}
		}
		return OutcomeMsg(out)
	}
}

func ListenForDone(finished <-chan batch.Summary) tea.Cmd {
	return func() tea.Msg {
		return DoneMsg(<-finished)
	}
}

// Summary returns the final summary, nil if the run was interrupted
func (m Model) Summary() *batch.Summary {
	return m.summary
}

func (m Model) Init() tea.Cmd {
	return ListenForOutcomes(m.outcomes)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case OutcomeMsg:
		out := batch.Outcome(msg)
		m.done++
		if out.Err != nil {
			m.failed++
		}
		m.recent = append(m.recent, out)
		if len(m.recent) > recentRows {
			m.recent = m.recent[len(m.recent)-recentRows:]
		}
		return m, ListenForOutcomes(m.outcomes)

	case DrainedMsg:
		// the summary is only read once every outcome is shown
		return m, ListenForDone(m.finished)

	case DoneMsg:
		s := batch.Summary(msg)
		m.summary = &s
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := m.Theme.Header()
	dimStyle := m.Theme.Dim()

	header := headerStyle.Render(fmt.Sprintf("go-infill batch  %d/%d  failed:%d", m.done, m.total, m.failed))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.progressBar())
	out.WriteString("\n\n")

	for _, o := range m.recent {
		out.WriteString(m.renderOutcome(o))
		out.WriteString("\n")
	}

	if m.summary != nil {
		out.WriteString("\n")
		out.WriteString(m.Theme.Good().Render(m.summary.String()))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(helpKeys)))
	return out.String()
}

// progressBar colours each filled cell by its position in the palette
func (m Model) progressBar() string {
	filled := 0
	if m.total > 0 {
		filled = m.done * barWidth / m.total
	}
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		if i < filled {
			style := lipgloss.NewStyle().Foreground(m.Theme.Color(float64(i) / barWidth))
			bar.WriteString(style.Render("█"))
		} else {
			bar.WriteString(m.Theme.Dim().Render("░"))
		}
	}
	return bar.String()
}

func (m Model) renderOutcome(o batch.Outcome) string {
	name := filepath.Base(o.Job.Output)
	if o.Err != nil {
		return m.Theme.Bad().Render("✗ "+name) + " " + m.Theme.Dim().Render(o.Err.Error())
	}
	return m.Theme.Good().Render("✓ "+name) + " " + m.Theme.Dim().Render(o.Elapsed.Round(1e6).String())
}
