package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/cli/render"
	"github.com/pithecene-io/conduit/runtime"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated counters for a recorded run.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show run counters",
		Subcommands: []*cli.Command{
			statsRunCommand(),
		},
	}
}

func statsRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Show counters for a run by ID",
		ArgsUsage: "<run-id>",
		Flags:     append(TUIReadOnlyFlags(), StorageFlags()...),
		Action:    statsRunAction,
	}
}

func statsRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run-id required", runtime.ExitCodeConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, err := openReader(c)
	if err != nil {
		return err
	}

	stats, err := rd.StatsRun(c.Context, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodePipelineError)
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_run", stats)
	}
	return r.Render(stats)
}
