package cmd

import (
	goruntime "runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/adapter"
	"github.com/pithecene-io/conduit/cli/render"
	"github.com/pithecene-io/conduit/crypt"
	"github.com/pithecene-io/conduit/frame"
	"github.com/pithecene-io/conduit/runtime"
	"github.com/pithecene-io/conduit/types"
)

// VersionResponse describes the binary and the wire contracts it speaks.
type VersionResponse struct {
	Version         string `json:"version"`
	ReportVersion   string `json:"report_version"`
	EventContract   string `json:"event_contract"`
	Commit          string `json:"commit"`
	GoVersion       string `json:"go_version"`
	FrameHeader     string `json:"frame_header"`
	MaxFramePayload int    `json:"max_frame_payload"`
	DefaultCipher   string `json:"default_cipher"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version and wire format information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return cli.Exit("--tui is not supported for version command", runtime.ExitCodeConfigError)
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
			}
			return r.Render(versionInfo(commit))
		},
	}
}

func versionInfo(commit string) VersionResponse {
	return VersionResponse{
		Version:         types.Version,
		ReportVersion:   types.ReportVersion,
		EventContract:   adapter.ContractVersion,
		Commit:          commit,
		GoVersion:       goruntime.Version(),
		FrameHeader:     "u32 little-endian, 4 bytes",
		MaxFramePayload: frame.DefaultMaxPayloadSize,
		DefaultCipher:   string(crypt.DefaultAlgorithm),
	}
}
