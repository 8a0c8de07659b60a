package cmd

import "github.com/urfave/cli/v2"

// Commands returns every conduit command in help order.
// Only pipe and its shortcuts move data; the rest are read-only.
func Commands(commit string) []*cli.Command {
	return []*cli.Command{
		PipeCommand(),
		EncryptCommand(),
		DecryptCommand(),
		CompressCommand(),
		DecompressCommand(),
		InspectCommand(),
		StatsCommand(),
		ListCommand(),
		StagesCommand(),
		KeygenCommand(),
		VersionCommand(commit),
	}
}
