package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/conduit/cli/config"
	"github.com/pithecene-io/conduit/crypt"
	"github.com/pithecene-io/conduit/lode"
	"github.com/pithecene-io/conduit/runtime"
)

// errKeyMaterialConflict is returned when more than one key source is given.
var errKeyMaterialConflict = errors.New("--key, --key-file and --passphrase are mutually exclusive")

// loadConfig loads --config if given. A nil config means none was given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	return config.Load(path)
}

// configExit wraps a configuration problem as a usage exit.
func configExit(err error) error {
	return cli.Exit(err.Error(), runtime.ExitCodeConfigError)
}

// configVal reads a field from an optional config.
func configVal[T any](cfg *config.Config, fn func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return fn(cfg)
}

// resolveString applies precedence: explicit flag, then config, then the
// flag's default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if cfgVal != "" {
		return cfgVal
	}
	return c.String(name)
}

// resolveInt applies flag > config > default precedence for ints.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Int(name)
}

// resolveBool applies flag > config > default precedence for bools.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

// resolveDuration applies flag > config > default precedence for durations.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Duration(name)
}

// resolveStorage builds the storage config from flags and config.
// Returns nil when no backend is selected.
func resolveStorage(c *cli.Context, cfg *config.Config) (*lode.Config, error) {
	backend := resolveString(c, "storage-backend", configVal(cfg, func(c *config.Config) string { return c.Storage.Backend }))
	if backend == "" {
		return nil, nil
	}
	sc := &lode.Config{
		Backend:      backend,
		Path:         resolveString(c, "storage-path", configVal(cfg, func(c *config.Config) string { return c.Storage.Path })),
		Region:       resolveString(c, "storage-region", configVal(cfg, func(c *config.Config) string { return c.Storage.Region })),
		Endpoint:     resolveString(c, "storage-endpoint", configVal(cfg, func(c *config.Config) string { return c.Storage.Endpoint })),
		UsePathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })),
		Dataset:      resolveString(c, "storage-dataset", configVal(cfg, func(c *config.Config) string { return c.Storage.Dataset })),
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}
	return sc, nil
}

// requireStorage is resolveStorage for commands that cannot work without it.
func requireStorage(c *cli.Context, cfg *config.Config) (*lode.Config, error) {
	sc, err := resolveStorage(c, cfg)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.New("--storage-backend is required (or storage.backend in config)")
	}
	return sc, nil
}

// buildCipher resolves key material into a cipher.
// Returns nil when no key material is configured.
func buildCipher(c *cli.Context, cfg *config.Config) (crypt.Cipher, error) {
	key := resolveString(c, "key", configVal(cfg, func(c *config.Config) string { return c.Key }))
	keyFile := resolveString(c, "key-file", configVal(cfg, func(c *config.Config) string { return c.KeyFile }))
	passphrase := resolveString(c, "passphrase", configVal(cfg, func(c *config.Config) string { return c.Passphrase }))

	given := 0
	for _, v := range []string{key, keyFile, passphrase} {
		if v != "" {
			given++
		}
	}
	switch given {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, errKeyMaterialConflict
	}

	algo, err := crypt.ParseAlgorithm(resolveString(c, "algorithm", configVal(cfg, func(c *config.Config) string { return c.Algorithm })))
	if err != nil {
		return nil, err
	}

	var raw []byte
	switch {
	case key != "":
		raw, err = crypt.ParseKey(key)
	case keyFile != "":
		raw, err = crypt.LoadKeyFile(keyFile)
	default:
		raw, err = crypt.DeriveKey(passphrase, nil, crypt.DefaultKDFParams())
	}
	if err != nil {
		return nil, err
	}
	return crypt.New(algo, raw)
}
