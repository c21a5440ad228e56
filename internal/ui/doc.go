// Package ui renders terminal output for the provision-cfg and provisiond
// commands.
//
// Components are rendered once with Lipgloss and printed; nothing here
// needs user interaction except Confirmation and the Spin helper, which
// runs a Bubble Tea program so the spinner animates while a task such as
// an mDNS scan is in flight.
//
//   - Header: command banner with ordered parameters
//   - Progress and Runner: step list for multi-step commands like submit
//   - Result: success, failure and warning boxes with troubleshooting tips
//   - RenderPortals, RenderInfo, RenderMessage: portal-specific tables
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Submit configuration",
//	    Command: "provision-cfg submit",
//	    Steps:   []string{"Reach portal", "Submit values", "Wait for device"},
//	})
//	err := runner.Run(func(onStep ui.StepCallback) ([]ui.KV, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ...
//	    onStep(1, ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Logging stays silent unless PROVISIONER_LOG_LEVEL is set, so the curated
// output is not interleaved with log lines.
package ui
