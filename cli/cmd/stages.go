package cmd

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/cli/render"
	"github.com/pithecene-io/conduit/codec"
	"github.com/pithecene-io/conduit/runtime"
)

// StageItem is one row of the stages command.
type StageItem struct {
	Name        string `json:"name"`
	Inverse     string `json:"inverse"`
	Args        string `json:"args"`
	Description string `json:"description"`
}

// StagesCommand returns the stages command.
func StagesCommand() *cli.Command {
	return &cli.Command{
		Name:   "stages",
		Usage:  "List the available stages",
		Flags:  ReadOnlyFlags(),
		Action: stagesAction,
	}
}

func stagesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for stages command", runtime.ExitCodeConfigError)
	}

	return r.Render(stageItems())
}

func stageItems() []StageItem {
	entries := codec.Catalogue()
	items := make([]StageItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, StageItem{
			Name:        e.Name,
			Inverse:     e.Inverse,
			Args:        strings.Join(e.Args, ","),
			Description: e.Description,
		})
	}
	return items
}
