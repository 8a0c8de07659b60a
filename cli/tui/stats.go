package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/conduit/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsRun:
		content = m.renderStatsRun()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsRun() string {
	data, ok := m.data.(*reader.RunStats)
	if !ok {
		return "Invalid data type for stats_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Statistics: " + data.RunID))
	b.WriteString("\n")
	b.WriteString(StatusStyle(data.Status).Render(data.Status))
	b.WriteString("\n\n")

	flow := []string{
		counter("Chunks Read", data.ChunksRead, accent),
		counter("Bytes In", data.BytesIn, accent),
		counter("Bytes Out", data.BytesOut, good),
		counter("Sink Writes", data.SinkWrites, good),
	}
	framing := []string{
		counter("Encoded", data.FramesEncoded, accent),
		counter("Decoded", data.FramesDecoded, accent),
		counter("Truncated", data.FramesTruncated, bad),
		counter("Too Large", data.FramesTooLarge, bad),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, flow...))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, framing...))
	b.WriteString("\n")
	b.WriteString(field("Need More", fmt.Sprintf("%d", data.NeedMoreInput), lipgloss.NewStyle().Foreground(caution)))

	return b.String()
}

func counter(label string, value int64, color lipgloss.Color) string {
	v := lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%d", value))
	l := lipgloss.NewStyle().Foreground(dim).Render(label)
	return CounterStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, v, l))
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
