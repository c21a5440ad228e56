package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/swartninja/provisioner/internal/version"
)

// AppName is shown in the header of every screen
const AppName = "PROVISIONING WIZARD"

// Layout constants
const (
	MinTerminalWidth = 72
	MaxContentWidth  = 120
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red
	TextColor      = lipgloss.Color("#FFFFFF") // White
	SubtleColor    = lipgloss.Color("#626262") // Gray
	BorderColor    = PrimaryColor
	HighlightColor = SecondaryColor
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(HighlightColor).
				Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(16)

	FocusedLabelStyle = LabelStyle.
				Foreground(PrimaryColor).
				Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// ResultBoxStyle frames the success and failure screens
	ResultBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2)
)

// RenderError renders an error line
func RenderError(text string) string {
	return ErrorTextStyle.Render("✗ " + text)
}

// ContentWidth clamps a terminal width to the usable content width
func ContentWidth(terminalWidth int) int {
	return min(max(terminalWidth, MinTerminalWidth), MaxContentWidth)
}

func buildHeader() string {
	return lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " " + version.Version)
}

// RenderApplicationContainer wraps every screen: header, content and a
// footer carrying the context-sensitive help. A zero size renders the
// content without filling the terminal.
func RenderApplicationContainer(content, footerText string, terminalWidth, terminalHeight int) string {
	width := ContentWidth(terminalWidth)

	header := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1).
		Render(buildHeader())

	footer := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1).
		Foreground(SubtleColor).
		Render(footerText)

	body := lipgloss.NewStyle().Width(width - 4).Render(content)

	frame := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2)
	if terminalHeight > 2 {
		frame = frame.Height(terminalHeight - 2).AlignVertical(lipgloss.Top)
	}

	bordered := frame.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
	if terminalWidth == 0 || terminalHeight == 0 {
		return bordered
	}
	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Left, lipgloss.Top, bordered)
}
