package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/cli/reader"
	"github.com/pithecene-io/conduit/cli/render"
	"github.com/pithecene-io/conduit/runtime"
)

// ListCommand returns the list command with subcommands.
// List returns shallow enumerations.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recorded entities (runs)",
		Subcommands: []*cli.Command{
			listRunsCommand(),
		},
	}
}

func listRunsCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Only reports for this run ID",
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "Filter by outcome (success, pipeline_error, framing_error, storage_error)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of results",
			Value: 100,
		},
	)
	return &cli.Command{
		Name:   "runs",
		Usage:  "List recorded runs, latest first",
		Flags:  append(flags, StorageFlags()...),
		Action: listRunsAction,
	}
}

func listRunsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", runtime.ExitCodeConfigError)
	}

	rd, err := openReader(c)
	if err != nil {
		return err
	}

	items, err := rd.ListRuns(c.Context, reader.ListRunsOptions{
		RunID:  c.String("run-id"),
		Status: c.String("status"),
		Limit:  c.Int("limit"),
	})
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodePipelineError)
	}

	return r.Render(items)
}
