package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a multi-step command
type RunnerConfig struct {
	Title   string
	Command string
	Params  []KV
	Steps   []string

	// Output defaults to os.Stdout
	Output io.Writer

	// Troubleshooting returns the tips shown when the operation fails
	Troubleshooting func(error) []string
}

// Runner prints a header, tracks steps while an operation runs and prints
// a result box when it returns.
type Runner struct {
	config   RunnerConfig
	out      io.Writer
	width    int
	progress *Progress
	now      func() time.Time
}

// NewRunner creates a runner for config
func NewRunner(config RunnerConfig) *Runner {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	width := GetTerminalWidth()
	return &Runner{
		config:   config,
		out:      out,
		width:    width,
		progress: NewProgress(config.Steps...).SetWidth(width),
		now:      time.Now,
	}
}

// Operation does the work, reporting each step through onStep, and returns
// the details shown in the success box.
type Operation func(onStep StepCallback) ([]KV, error)

// Run executes op and returns its error
func (r *Runner) Run(op Operation) error {
	start := r.now()

	header := NewHeader(r.config.Title, r.config.Command, r.config.Params...).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(r.onStep)
	elapsed := r.now().Sub(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, r.progress.RenderBar())
	_, _ = fmt.Fprintln(r.out)

	var result *Result
	if err != nil {
		var tips []string
		if r.config.Troubleshooting != nil {
			tips = r.config.Troubleshooting(err)
		}
		result = NewFailureResult(r.config.Title+" failed", err, tips)
	} else {
		result = NewSuccessResult(r.config.Title+" complete", details...)
		result.AddDetail("Duration", elapsed.String())
	}
	_, _ = fmt.Fprintln(r.out, result.SetWidth(r.width).Render())
	return err
}

// Progress returns the step tracker
func (r *Runner) Progress() *Progress {
	return r.progress
}

func (r *Runner) onStep(n int, status StepStatus, message string) {
	r.progress.Update(n, status, message)

	switch status {
	case StepComplete, StepFailed, StepSkipped:
		_, _ = fmt.Fprintln(r.out, r.progress.RenderStep(n))
	case StepRunning:
		// overwritten by the final line of the step
		_, _ = fmt.Fprint(r.out, r.progress.RenderStep(n)+"\r")
	}
}
