package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorMagenta = lipgloss.Color("#D75FD7")
	colorGreen   = lipgloss.Color("#5FD75F")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorRed     = lipgloss.Color("#FF5F5F")
	colorDim     = lipgloss.Color("#8A8A8A")
)

// Styles is the palette of one output stream
type Styles struct {
	Banner  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Account lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles builds the palette for w. Colors are dropped when w is not a terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Banner: r.NewStyle().
			Foreground(colorCyan).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMagenta).
			Padding(0, 2),
		Label:   r.NewStyle().Foreground(colorCyan).Bold(true),
		Value:   r.NewStyle().Foreground(colorYellow),
		Account: r.NewStyle().Foreground(colorMagenta),
		Success: r.NewStyle().Foreground(colorGreen),
		Warning: r.NewStyle().Foreground(colorYellow),
		Error:   r.NewStyle().Foreground(colorRed).Bold(true),
		Dim:     r.NewStyle().Foreground(colorDim),
	}
}
