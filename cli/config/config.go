package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/conduit/codec"
	"github.com/pithecene-io/conduit/lode"
	"github.com/pithecene-io/conduit/policy"
)

// Config represents a conduit.yaml configuration file.
// All values are optional and act as defaults for conduit flags.
// CLI flags always override config values.
type Config struct {
	ReadSize     int          `yaml:"read_size"`
	MaxFrameSize int          `yaml:"max_frame_size"`
	ChunkSize    int          `yaml:"chunk_size"`
	Stages       []codec.Spec `yaml:"stages"`

	// Cipher material. At most one of Key, KeyFile and Passphrase.
	Key        string `yaml:"key"`
	KeyFile    string `yaml:"key_file"`
	Passphrase string `yaml:"passphrase"`
	Algorithm  string `yaml:"algorithm"`

	Storage StorageConfig `yaml:"storage"`
	Policy  PolicyConfig  `yaml:"policy"`
	Adapter AdapterConfig `yaml:"adapter"`
	Log     LogConfig     `yaml:"log"`
	Report  ReportConfig  `yaml:"report"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds write policy defaults from the config file.
type PolicyConfig struct {
	Name        string `yaml:"name"`
	BufferBytes int    `yaml:"buffer_bytes"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type     string            `yaml:"type"`
	URL      string            `yaml:"url"`
	Channel  string            `yaml:"channel,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Timeout  Duration          `yaml:"timeout,omitempty"`
	Retries  *int              `yaml:"retries,omitempty"`
	Encoding string            `yaml:"encoding,omitempty"`
	// Mode and MaxLen apply to the redis adapter only.
	Mode   string `yaml:"mode,omitempty"`
	MaxLen int64  `yaml:"max_len,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ReportConfig holds run report defaults.
type ReportConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// LodeConfig converts the storage section into a lode.Config.
// Returns nil when no backend is configured.
func (c *Config) LodeConfig() *lode.Config {
	if c.Storage.Backend == "" {
		return nil
	}
	return &lode.Config{
		Backend:      c.Storage.Backend,
		Path:         c.Storage.Path,
		Region:       c.Storage.Region,
		Endpoint:     c.Storage.Endpoint,
		UsePathStyle: c.Storage.S3PathStyle,
		Dataset:      c.Storage.Dataset,
	}
}

// PolicySettings converts the policy section into a policy.Config.
func (c *Config) PolicySettings() policy.Config {
	return policy.Config{
		Name:        c.Policy.Name,
		BufferBytes: c.Policy.BufferBytes,
	}
}
