package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one step of a multi-step operation
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// Step is one line of the step list
type Step struct {
	Name    string
	Status  StepStatus
	Message string // Optional note, e.g. "3 networks" or "retrying"
}

// Progress is a progress bar above a step list
type Progress struct {
	Steps []Step
	Width int
	bar   progress.Model
}

// NewProgress creates a progress display with the given step names
func NewProgress(names ...string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name}
	}
	p := &Progress{Steps: steps}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth resizes the bar to fit width
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(min(max(width-20, 20), 50)),
	)
	return p
}

// Update sets the status of step n (1-based). Out of range steps are ignored.
func (p *Progress) Update(n int, status StepStatus, message string) {
	if n < 1 || n > len(p.Steps) {
		return
	}
	p.Steps[n-1].Status = status
	p.Steps[n-1].Message = message
}

// Percent is the share of complete or skipped steps
func (p *Progress) Percent() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps))
}

// Render returns the bar followed by every step line
func (p *Progress) Render() string {
	lines := []string{p.RenderBar(), ""}
	for i := range p.Steps {
		lines = append(lines, p.RenderStep(i+1))
	}
	return strings.Join(lines, "\n")
}

// RenderBar renders the progress bar with its percentage
func (p *Progress) RenderBar() string {
	percent := p.Percent()
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%", p.bar.ViewAs(percent), percent*100))
}

// RenderStep renders step n (1-based)
func (p *Progress) RenderStep(n int) string {
	if n < 1 || n > len(p.Steps) {
		return ""
	}
	step := p.Steps[n-1]

	marker, style := StepMarkerPending, StepPendingStyle
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker = StepMarkerSkipped
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", n, len(p.Steps))
	b.WriteString(style.Render(padRight(step.Name, 40)))
	b.WriteString(" ")
	b.WriteString(style.Render(marker))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

// StepCallback reports progress of step n (1-based)
type StepCallback func(n int, status StepStatus, message string)
