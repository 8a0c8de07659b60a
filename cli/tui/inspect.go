package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/conduit/cli/reader"
)

// frameTableHeight is the number of frame rows visible at once.
const frameTableHeight = 12

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	frames   table.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	m := InspectModel{
		viewType: viewType,
		data:     data,
	}
	if resp, ok := data.(*reader.InspectFramesResponse); ok {
		m.frames = newFrameTable(resp)
	}
	return m
}

func newFrameTable(resp *reader.InspectFramesResponse) table.Model {
	rows := make([]table.Row, 0, len(resp.Frames))
	for _, f := range resp.Frames {
		rows = append(rows, table.Row{
			strconv.Itoa(f.Index),
			strconv.FormatInt(f.Offset, 10),
			strconv.Itoa(f.Length),
		})
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Frame", Width: 8},
			{Title: "Offset", Width: 12},
			{Title: "Length", Width: 10},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(frameTableHeight),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dim).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(bright).
		Background(accent)
	t.SetStyles(s)
	return t
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	if m.viewType == ViewInspectFrames {
		var cmd tea.Cmd
		m.frames, cmd = m.frames.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	help := "Press q or Ctrl+C to quit"
	switch m.viewType {
	case ViewInspectFrames:
		content = m.renderInspectFrames()
		help = "↑/↓ scroll • q quit"
	case ViewInspectRun:
		content = m.renderInspectRun()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return content + "\n" + HelpStyle.Render(help)
}

func (m InspectModel) renderInspectFrames() string {
	data, ok := m.data.(*reader.InspectFramesResponse)
	if !ok {
		return "Invalid data type for inspect_frames"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Frames: " + data.Source))
	b.WriteString("\n\n")

	state := "complete"
	if !data.Complete {
		state = "incomplete"
	}
	b.WriteString(field("Frames", strconv.Itoa(data.FrameCount), ValueStyle))
	b.WriteString(field("Payload", byteCount(data.PayloadBytes), ValueStyle))
	b.WriteString(field("Stream", byteCount(data.StreamBytes), ValueStyle))
	b.WriteString(field("Max Payload", byteCount(int64(data.MaxPayload)), ValueStyle))
	b.WriteString(field("State", state, StatusStyle(state)))
	if data.Error != "" {
		b.WriteString(field("Error", data.Error, StatusStyle("pipeline_error")))
	}

	b.WriteString("\n")
	if data.FrameCount == 0 {
		b.WriteString(HelpStyle.Render("(no frames)"))
	} else {
		b.WriteString(m.frames.View())
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectRun() string {
	data, ok := m.data.(*reader.InspectRunResponse)
	if !ok {
		return "Invalid data type for inspect_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Details"))
	b.WriteString("\n\n")

	b.WriteString(field("Run ID", data.RunID, ValueStyle))
	b.WriteString(field("Status", data.Status, StatusStyle(data.Status)))
	b.WriteString(field("Stages", data.Stages, ValueStyle))
	b.WriteString(field("Policy", data.Policy, ValueStyle))
	b.WriteString(field("Day", data.Day, ValueStyle))
	b.WriteString(field("Started At", data.StartedAt, ValueStyle))
	b.WriteString(field("Duration", fmt.Sprintf("%dms", data.DurationMs), ValueStyle))

	optional := [][2]string{
		{"Job ID", data.JobID},
		{"Failed Stage", data.Stage},
		{"Message", data.Message},
		{"Digest", data.OutputDigest},
	}
	for _, kv := range optional {
		if kv[1] != "" {
			b.WriteString(field(kv[0], kv[1], ValueStyle))
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
