package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiportal/internal/version"
)

// AppName is shown in the container header.
const AppName = "WIFIPORTAL SETUP"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red

	TextColor   = lipgloss.Color("#FFFFFF") // White
	SubtleColor = lipgloss.Color("#626262") // Gray
	BorderColor = lipgloss.Color("#7D56F4") // Purple (same as primary)
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(SecondaryColor).
				Bold(true)

	ItemStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	ErrorBoxStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor).
			Padding(1, 2)

	SuccessBoxStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(1, 2)
)

// contentWidth clamps a terminal width to the usable range.
func contentWidth(terminalWidth int) int {
	if terminalWidth < MinTerminalWidth {
		return MinTerminalWidth
	}
	if terminalWidth > MaxContentWidth {
		return MaxContentWidth
	}
	return terminalWidth
}

// renderContainer wraps a screen with the application header and a help
// footer.
func renderContainer(content, footer string, terminalWidth int) string {
	width := contentWidth(terminalWidth)

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Foreground(TextColor).Bold(true).Render(AppName),
		" ",
		lipgloss.NewStyle().Foreground(SubtleColor).Render(version.Version),
	)
	section := func(border lipgloss.Border) lipgloss.Style {
		return lipgloss.NewStyle().
			BorderStyle(border).
			BorderForeground(BorderColor).
			Width(width - 4).
			Padding(0, 1)
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		section(lipgloss.Border{Bottom: "─"}).Render(header),
		lipgloss.NewStyle().Width(width - 4).Render(content),
		section(lipgloss.Border{Top: "─"}).Render(lipgloss.NewStyle().Foreground(SubtleColor).Render(footer)),
	)
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2).
		Render(inner)
}
