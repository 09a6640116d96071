package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed above a command's output.
type Header struct {
	Title   string
	Command string
	Params  map[string]string
	Width   int
}

// NewHeader creates a header sized to the terminal.
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth overrides the terminal width.
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the bordered header.
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	)

	content := top
	if len(h.Params) > 0 {
		dividerWidth := width - 6
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		content = lipgloss.JoinVertical(lipgloss.Left,
			top,
			RenderHorizontalDivider(dividerWidth, "─"),
			renderPairs(h.Params, HeaderParamKeyStyle, HeaderParamValueStyle, ""),
		)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

func (h *Header) String() string {
	return h.Render()
}

// renderPairs prints key: value lines sorted by key so output is stable.
func renderPairs(pairs map[string]string, keyStyle, valueStyle lipgloss.Style, indent string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, keyStyle.Render(indent+k+":")+" "+valueStyle.Render(pairs[k]))
	}
	return strings.Join(lines, "\n")
}
