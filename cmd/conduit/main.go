// Package main provides the conduit CLI entrypoint.
//
// Usage:
//
//	conduit [--config conduit.yaml] <command> [subcommand] [options]
//
// Exit codes for pipe and its shortcuts:
//   - 0: success
//   - 1: pipeline, codec, source, sink or storage failure
//   - 2: invalid arguments or configuration
//   - 3: truncated or oversized frame
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/cli/cmd"
	"github.com/pithecene-io/conduit/runtime"
	"github.com/pithecene-io/conduit/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "conduit",
		Usage:          "Stream bytes through composable, reversible stages",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:          cmd.GlobalFlags(),
		ExitErrHandler: exitErrHandler,
		Commands:       cmd.Commands(commit),
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(runtime.ExitCodePipelineError)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(exitStatus(err, os.Stderr))
}

// exitStatus prints err to w when it carries a real message and returns
// the process exit code.
func exitStatus(err error, w io.Writer) int {
	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	// Unexpected error - print and exit with code 1
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return runtime.ExitCodePipelineError
}
