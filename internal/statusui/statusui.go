// Package statusui renders a live bubbletea dashboard over a running
// daqctl.Controller: a table of buffers with fill level, event count, and
// commit rate, filterable by name.
package statusui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/sahilm/fuzzy"

	"github.com/nick/ringdaq/internal/ring"
)

const refreshInterval = 500 * time.Millisecond

// controller is the subset of *daqctl.Controller the dashboard needs,
// kept narrow so this package does not import daqctl's full surface.
type controller interface {
	Status() []ring.BufferStatus
	Run(ctx context.Context) error
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	footerStyle  = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type runDoneMsg struct{ err error }

type model struct {
	ctrl      controller
	ctx       context.Context
	table     table.Model
	filter    textinput.Model
	filtering bool
	runErr    error
	done      bool
}

func newModel(ctx context.Context, ctrl controller) model {
	columns := []table.Column{
		{Title: "Buffer", Width: 12},
		{Title: "Filled", Width: 10},
		{Title: "Events", Width: 12},
		{Title: "Rate (Hz)", Width: 10},
		{Title: "State", Width: 10},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(false), table.WithHeight(10))

	ti := textinput.New()
	ti.Placeholder = "filter by buffer name"
	ti.CharLimit = 64

	return model{ctrl: ctrl, ctx: ctx, table: t, filter: ti}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), runController(m.ctx, m.ctrl))
}

func runController(ctx context.Context, ctrl controller) tea.Cmd {
	return func() tea.Msg {
		return runDoneMsg{err: ctrl.Run(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.refreshRows()
			return m, cmd
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, nil
		}
		return m, nil

	case tickMsg:
		m.refreshRows()
		if m.done {
			return m, nil
		}
		return m, tick()

	case runDoneMsg:
		m.done = true
		m.runErr = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) refreshRows() {
	statuses := m.ctrl.Status()
	query := m.filter.Value()

	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = st.Name
	}

	indices := make([]int, 0, len(statuses))
	if query == "" {
		for i := range statuses {
			indices = append(indices, i)
		}
	} else {
		for _, match := range fuzzy.Find(query, names) {
			indices = append(indices, match.Index)
		}
	}

	rows := make([]table.Row, 0, len(indices))
	for _, i := range indices {
		st := statuses[i]
		rows = append(rows, table.Row{
			st.Name,
			fmt.Sprintf("%d/%d", st.NFilled, st.NumSlots),
			fmt.Sprintf("%d", st.EventsTotal),
			fmt.Sprintf("%.1f", st.RateHz),
			stateLabel(st),
		})
	}
	m.table.SetRows(rows)
}

func stateLabel(st ring.BufferStatus) string {
	switch {
	case st.ShutdownSet:
		return stoppedStyle.Render("shutdown")
	case st.Paused:
		return pausedStyle.Render("paused")
	default:
		return runningStyle.Render("running")
	}
}

func (m model) View() string {
	header := headerStyle.Render("ringdaq — live buffer status")
	body := m.table.View()

	footer := footerStyle.Render("q quit  /  filter by buffer name")
	if m.filtering {
		footer = m.filter.View()
	}
	footer = wordwrap.String(footer, 80)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Run renders the dashboard while ctrl.Run executes in the background,
// returning once the run completes or the user quits (q / ctrl+c).
func Run(ctx context.Context, ctrl controller) error {
	m := newModel(ctx, ctrl)
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok {
		return fm.runErr
	}
	return nil
}
