package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/cli/config"
	"github.com/pithecene-io/conduit/cli/reader"
	"github.com/pithecene-io/conduit/cli/render"
	"github.com/pithecene-io/conduit/endpoint"
	"github.com/pithecene-io/conduit/iox"
	"github.com/pithecene-io/conduit/lode"
	"github.com/pithecene-io/conduit/runtime"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single entity (frames, run)",
		Subcommands: []*cli.Command{
			inspectFramesCommand(),
			inspectRunCommand(),
		},
	}
}

func inspectFramesCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(),
		&cli.IntFlag{
			Name:  "max-frame-size",
			Usage: "Largest accepted frame payload in bytes (default 16 MiB)",
		},
	)
	return &cli.Command{
		Name:      "frames",
		Usage:     "List the length-prefixed frames of a stream",
		ArgsUsage: "<source>",
		Flags:     append(flags, StorageFlags()...),
		Action:    inspectFramesAction,
	}
}

func inspectFramesAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("source required", runtime.ExitCodeConfigError)
	}
	source := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return configExit(err)
	}

	opts := endpoint.Options{Stdin: c.App.Reader}
	sc, err := resolveStorage(c, cfg)
	if err != nil {
		return configExit(err)
	}
	if sc != nil {
		factory, err := lode.NewFactory(c.Context, *sc)
		if err != nil {
			return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodePipelineError)
		}
		opts.Objects = lode.NewObjects(factory, nil)
	}

	src, err := endpoint.OpenSource(c.Context, source, opts)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodePipelineError)
	}
	defer iox.DiscardClose(src)

	maxPayload := resolveInt(c, "max-frame-size", configVal(cfg, func(c *config.Config) int { return c.MaxFrameSize }))
	resp, err := reader.InspectFrames(src, source, maxPayload)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodePipelineError)
	}

	if c.Bool("tui") {
		err = r.RenderTUI("inspect_frames", resp)
	} else {
		err = r.Render(resp)
	}
	if err != nil {
		return err
	}

	// An incomplete stream is a framing failure, same as a decode run.
	if !resp.Complete {
		return cli.Exit("", runtime.ExitCodeFramingError)
	}
	return nil
}

func inspectRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Inspect a run by ID",
		ArgsUsage: "<run-id>",
		Flags:     append(TUIReadOnlyFlags(), StorageFlags()...),
		Action:    inspectRunAction,
	}
}

func inspectRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run-id required", runtime.ExitCodeConfigError)
	}
	runID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, err := openReader(c)
	if err != nil {
		return err
	}

	resp, err := rd.InspectRun(c.Context, runID)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodePipelineError)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_run", resp)
	}
	return r.Render(resp)
}

// openReader opens the report dataset named by the storage flags and
// config. Failures are returned as cli exit errors.
func openReader(c *cli.Context) (*reader.Reader, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, configExit(err)
	}
	sc, err := requireStorage(c, cfg)
	if err != nil {
		return nil, configExit(err)
	}
	rd, err := reader.Open(c.Context, *sc)
	if err != nil {
		return nil, cli.Exit(err.Error(), runtime.ExitCodePipelineError)
	}
	return rd, nil
}
