package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirmation is a warning box followed by a typed confirmation prompt
type Confirmation struct {
	Title  string
	Points []string

	// Phrase must be typed exactly to proceed
	Phrase string
}

// Ask prints the warning to out and reads one line from in. It returns
// true only when the line equals the phrase.
func (c Confirmation) Ask(in io.Reader, out io.Writer) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render("   " + WarningMarker + "  " + strings.ToUpper(c.Title)), ""}
	for _, point := range c.Points {
		lines = append(lines, "   • "+point)
	}
	lines = append(lines, "")

	box := boxStyle(WarningColor, lipgloss.DoubleBorder(), width).Render(strings.Join(lines, "\n"))
	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", c.Phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == c.Phrase {
		return true
	}

	_, _ = fmt.Fprintln(out, StepPendingStyle.Render("  Operation cancelled."))
	return false
}

// ClearConfigConfirmation guards removal of the stored broker configuration
func ClearConfigConfirmation(path string) Confirmation {
	return Confirmation{
		Title: "Clear stored configuration",
		Points: []string{
			"The broker configuration at " + path + " will be deleted",
			"The next boot falls back to the compiled-in broker defaults",
			"Submitted WiFi credentials are kept by the network manager",
		},
		Phrase: "CLEAR",
	}
}
