package config

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/conduit/log"
)

// ErrInvalid matches every error returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Validate checks values that need no flags to judge. Cross-field rules
// that depend on CLI overrides are left to the command layer.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.ReadSize >= 0, "read_size must be >= 0, got %d", c.ReadSize)
	check(c.ChunkSize >= 0, "chunk_size must be >= 0, got %d", c.ChunkSize)
	check(c.MaxFrameSize >= 0, "max_frame_size must be >= 0, got %d", c.MaxFrameSize)
	check(c.Policy.BufferBytes >= 0, "policy.buffer_bytes must be >= 0, got %d", c.Policy.BufferBytes)

	keySources := 0
	for _, s := range []string{c.Key, c.KeyFile, c.Passphrase} {
		if s != "" {
			keySources++
		}
	}
	check(keySources <= 1, "at most one of key, key_file and passphrase may be set")

	for i, s := range c.Stages {
		check(s.Name != "", "stages[%d]: name is required", i)
	}

	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		check(false, "adapter.type %q must be webhook or redis", c.Adapter.Type)
	}
	if c.Adapter.Type != "" {
		check(c.Adapter.URL != "", "adapter.url is required when adapter.type is set")
	}
	check(c.Adapter.Retries == nil || *c.Adapter.Retries >= 0, "adapter.retries must be >= 0")
	check(c.Adapter.MaxLen >= 0, "adapter.max_len must be >= 0, got %d", c.Adapter.MaxLen)

	if c.Log.Level != "" {
		_, err := log.ParseLevel(c.Log.Level)
		check(err == nil, "log.level: %v", err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
