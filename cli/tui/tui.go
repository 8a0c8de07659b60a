package tui

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
)

// View names accepted by Run.
const (
	ViewInspectFrames = "inspect_frames"
	ViewInspectRun    = "inspect_run"
	ViewStatsRun      = "stats_run"
)

// views maps each view name to the model that renders it.
var views = map[string]func(view string, data any) tea.Model{
	ViewInspectFrames: func(v string, d any) tea.Model { return NewInspectModel(v, d) },
	ViewInspectRun:    func(v string, d any) tea.Model { return NewInspectModel(v, d) },
	ViewStatsRun:      func(v string, d any) tea.Model { return NewStatsModel(v, d) },
}

// Run shows data in the named view until the user quits.
func Run(view string, data any) error {
	newModel, ok := views[view]
	if !ok {
		return fmt.Errorf("TUI mode is not supported for %s", view)
	}
	_, err := tea.NewProgram(newModel(view, data), tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether view has a TUI.
func IsTUISupported(view string) bool {
	_, ok := views[view]
	return ok
}

// SupportedTUIViews lists view names in sorted order.
func SupportedTUIViews() []string {
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
