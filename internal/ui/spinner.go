package ui

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerStyle colors the spinner glyph
var SpinnerStyle = lipgloss.NewStyle().Foreground(PrimaryColor)

// Spinner shows an animated label while a task runs. When Static is set,
// typically because stdout is not a terminal, the label is printed once
// instead.
type Spinner struct {
	Label  string
	Output io.Writer
	Static bool
}

// NewSpinner creates a spinner on stdout, static when stdout is not a
// terminal
func NewSpinner(label string) Spinner {
	return Spinner{Label: label, Output: os.Stdout, Static: !IsTerminal()}
}

type taskDoneMsg struct {
	value any
	err   error
}

type spinnerModel struct {
	spinner spinner.Model
	label   string
	task    tea.Cmd
	cancel  context.CancelFunc
	done    *taskDoneMsg
}

func newSpinnerModel(label string, task tea.Cmd, cancel context.CancelFunc) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return spinnerModel{spinner: s, label: label, task: task, cancel: cancel}
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.task)
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.done = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		// the task sees the cancellation and finishes with ctx.Err()
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.cancel()
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done != nil {
		return ""
	}
	return "  " + m.spinner.View() + " " + m.label + "\n"
}

// Spin runs task under s and returns its result. Pressing ctrl+c cancels
// the context passed to task.
func Spin[T any](ctx context.Context, s Spinner, task func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := s.Output
	if out == nil {
		out = os.Stdout
	}
	if s.Static {
		_, _ = fmt.Fprintln(out, "  "+s.Label+"...")
		return task(ctx)
	}

	run := func() tea.Msg {
		v, err := task(ctx)
		return taskDoneMsg{value: v, err: err}
	}
	final, err := tea.NewProgram(newSpinnerModel(s.Label, run, cancel), tea.WithOutput(out)).Run()

	var zero T
	if err != nil {
		return zero, fmt.Errorf("spinner: %w", err)
	}
	m := final.(spinnerModel)
	if m.done == nil {
		return zero, context.Canceled
	}
	if m.done.err != nil {
		return zero, m.done.err
	}
	v, _ := m.done.value.(T)
	return v, nil
}
