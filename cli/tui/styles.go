// Package tui provides Bubble Tea views for the conduit CLI.
//
// Views are opt-in (--tui) and read-only. They render the same payloads
// the table/json renderers receive; no view computes data of its own.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#0EA5E9")
	good    = lipgloss.Color("#22C55E")
	caution = lipgloss.Color("#EAB308")
	bad     = lipgloss.Color("#DC2626")
	dim     = lipgloss.Color("#71717A")
	bright  = lipgloss.Color("#F4F4F5")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	LabelStyle = lipgloss.NewStyle().Foreground(dim).Width(14)
	ValueStyle = lipgloss.NewStyle().Foreground(bright)
	HelpStyle  = lipgloss.NewStyle().Foreground(dim).MarginTop(1)

	// BoxStyle frames a whole view.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(1, 2)

	// CounterStyle frames one counter on the stats view; callers recolor
	// the border per counter group.
	CounterStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			Width(16).
			Align(lipgloss.Center)
)

// outcomeColors maps run outcomes and stream states to a color.
// Framing failures are cautions: the pipeline ran, the stream was bad.
var outcomeColors = map[string]lipgloss.Color{
	"success":        good,
	"complete":       good,
	"framing_error":  caution,
	"incomplete":     caution,
	"pipeline_error": bad,
	"storage_error":  bad,
}

// StatusStyle returns the style for a run outcome or stream state.
func StatusStyle(status string) lipgloss.Style {
	if c, ok := outcomeColors[status]; ok {
		return lipgloss.NewStyle().Bold(true).Foreground(c)
	}
	return ValueStyle
}

// field renders one "label: value" line.
func field(label string, value string, style lipgloss.Style) string {
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), style.Render(value))
}

// byteCount formats n as a human-readable size.
func byteCount(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB (%d)", float64(n)/float64(div), "KMGTPE"[exp], n)
}
