package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/crypt"
	"github.com/pithecene-io/conduit/runtime"
)

// KeygenCommand returns the keygen command.
// Keys are printed in the hex: form accepted by --key and key files.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a cipher key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "passphrase",
				Usage:   "Derive the key from a passphrase instead of random bytes",
				EnvVars: []string{"CONDUIT_PASSPHRASE"},
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write the key to this file (mode 0600) instead of stdout",
			},
		},
		Action: keygenAction,
	}
}

func keygenAction(c *cli.Context) error {
	var (
		key []byte
		err error
	)
	if pass := c.String("passphrase"); pass != "" {
		key, err = crypt.DeriveKey(pass, nil, crypt.DefaultKDFParams())
	} else {
		key, err = crypt.GenerateKey()
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("keygen: %v", err), runtime.ExitCodePipelineError)
	}

	encoded := crypt.EncodeKey(key) + "\n"
	if path := c.String("out"); path != "" {
		if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
			return cli.Exit(fmt.Sprintf("keygen: %v", err), runtime.ExitCodePipelineError)
		}
		return nil
	}
	_, err = fmt.Fprint(c.App.Writer, encoded)
	return err
}
