package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// BatchState is the snapshot the batch engine publishes to the view.
type BatchState struct {
	Total    int
	Done     int
	Failed   int
	Current  string
	Finished bool
}

// UpdateMsg delivers a fresh BatchState to the running program.
type UpdateMsg struct {
	State BatchState
}

// Model implements the tea.Model interface for one push run.
type Model struct {
	state   BatchState
	spinner spinner.Model
	bar     progress.Model
	onAbort func()

	width int

	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	failStyle    lipgloss.Style
	successStyle lipgloss.Style
	helpStyle    lipgloss.Style
}

// NewModel creates the batch progress view.
func NewModel(initial BatchState) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		state:        initial,
		spinner:      s,
		bar:          progress.New(progress.WithDefaultGradient()),
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		failStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}

// WithAbort returns a copy of the model that invokes fn when the user
// quits the view while the batch is still running. The terminal is in
// raw mode while the view is up, so ctrl+c arrives here as a key press
// rather than a signal; fn is how the quit keys reach the batch.
func (m Model) WithAbort(fn func()) Model {
	m.onAbort = fn
	return m
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.state.Finished && m.onAbort != nil {
				m.onAbort()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 14

	case UpdateMsg:
		m.state = msg.State
		if m.state.Finished {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder

	header := fmt.Sprintf("%s Stagepush %s", m.spinner.View(), m.titleStyle.Render("Batch Transfer"))
	sb.WriteString(header + "\n")

	sb.WriteString(m.infoStyle.Render(tallyLine(m.state)) + "\n")
	sb.WriteString(m.bar.ViewAs(fraction(m.state)) + "\n")

	if m.state.Current != "" && !m.state.Finished {
		sb.WriteString("\nTransferring: " + truncatePath(m.state.Current, m.width-14) + "\n")
	}
	if m.state.Failed > 0 {
		sb.WriteString(m.failStyle.Render(fmt.Sprintf("\n%d file(s) failed", m.state.Failed)) + "\n")
	}

	help := m.helpStyle.Render("q/ctrl+c: abort batch")
	if m.state.Finished {
		help = m.successStyle.Render("Batch complete!") + " Press 'q' to exit."
	}
	sb.WriteString("\n" + help)

	return sb.String()
}

// tallyLine renders the done/failed/total counts.
func tallyLine(s BatchState) string {
	return fmt.Sprintf("Files: %d/%d | Failed: %d", s.Done+s.Failed, s.Total, s.Failed)
}

// fraction converts the tallies to bar progress, treating an empty batch
// as complete.
func fraction(s BatchState) float64 {
	if s.Total == 0 {
		return 1.0
	}
	return float64(s.Done+s.Failed) / float64(s.Total)
}

func truncatePath(path string, max int) string {
	if max < 4 || len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}
