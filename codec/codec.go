// Package codec is the catalogue of named stages a pipeline can be built from.
//
// Each entry maps a name such as "upper" or "encrypt" to a factory. Specs
// are written name[:key=value,...], for example "encrypt:chunk=4096" or
// "replace:old=foo,new=bar".
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pithecene-io/conduit/crypt"
	"github.com/pithecene-io/conduit/metrics"
	"github.com/pithecene-io/conduit/stage"
)

// DefaultChunkSize is the plaintext block size for framed codecs.
const DefaultChunkSize = 8192

var (
	// ErrUnknownStage is returned for a name missing from the registry.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrInvalidSpec is returned for unparsable specs and bad arguments.
	ErrInvalidSpec = errors.New("invalid stage spec")
	// ErrMissingCipher is returned when encrypt or decrypt has no key.
	ErrMissingCipher = errors.New("stage requires a cipher key")
	// ErrMalformedInput wraps decoding failures inside codec stages.
	ErrMalformedInput = errors.New("malformed input")
)

// Env carries shared dependencies into stage factories.
type Env struct {
	// Cipher backs encrypt and decrypt. Nil makes them fail to build.
	Cipher crypt.Cipher
	// ChunkSize is the default block size for framed codecs. Zero selects DefaultChunkSize.
	ChunkSize int
	// MaxFrameSize bounds decoded frame payloads. Zero selects the frame package default.
	MaxFrameSize int
	// Collector receives frame counters. May be nil.
	Collector *metrics.Collector
}

func (e Env) chunkSize() int {
	if e.ChunkSize > 0 {
		return e.ChunkSize
	}
	return DefaultChunkSize
}

// Spec is a parsed stage reference.
type Spec struct {
	Name string            `yaml:"name" json:"name"`
	Args map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// String formats the spec in the form ParseSpec accepts.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Args))
	for k := range s.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + s.Args[k]
	}
	return s.Name + ":" + strings.Join(parts, ",")
}

// ParseSpec parses name[:key=value,...].
func ParseSpec(s string) (Spec, error) {
	name, rest, hasArgs := strings.Cut(strings.TrimSpace(s), ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Spec{}, fmt.Errorf("%w: empty stage name in %q", ErrInvalidSpec, s)
	}
	spec := Spec{Name: name}
	if !hasArgs {
		return spec, nil
	}
	spec.Args = make(map[string]string)
	for _, pair := range strings.Split(rest, ",") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return Spec{}, fmt.Errorf("%w: argument %q in %q is not key=value", ErrInvalidSpec, pair, s)
		}
		spec.Args[strings.TrimSpace(k)] = v
	}
	return spec, nil
}

// ParseChain parses a "|"-separated list of specs, the form used by
// --stages and by run reports ("upper|encrypt:chunk=4096").
func ParseChain(s string) ([]Spec, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty stage chain", ErrInvalidSpec)
	}
	parts := strings.Split(s, "|")
	specs := make([]Spec, 0, len(parts))
	for _, part := range parts {
		spec, err := ParseSpec(part)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// FormatChain is the inverse of ParseChain.
func FormatChain(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, "|")
}

// Factory builds a stage from env and spec arguments.
type Factory func(env Env, args map[string]string) (stage.Stage, error)

// Entry describes one registered stage.
type Entry struct {
	Name        string   `json:"name" yaml:"name" msgpack:"name"`
	Inverse     string   `json:"inverse,omitempty" yaml:"inverse,omitempty" msgpack:"inverse,omitempty"`
	Description string   `json:"description" yaml:"description" msgpack:"description"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty" msgpack:"args,omitempty"`
	Factory     Factory  `json:"-" yaml:"-" msgpack:"-"`
}

// Registry maps stage names to entries. Not safe for concurrent registration.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds e, replacing any entry with the same name.
func (r *Registry) Register(e Entry) {
	if _, exists := r.entries[e.Name]; !exists {
		r.order = append(r.order, e.Name)
	}
	r.entries[e.Name] = e
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns all entries in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Inverse returns the name of the stage that undoes name, if any.
func (r *Registry) Inverse(name string) (string, bool) {
	e, ok := r.entries[name]
	if !ok || e.Inverse == "" {
		return "", false
	}
	return e.Inverse, true
}

// Build constructs the stage for spec, named after the spec.
func (r *Registry) Build(env Env, spec Spec) (stage.Stage, error) {
	e, ok := r.entries[spec.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, spec.Name)
	}
	if err := checkArgs(e, spec.Args); err != nil {
		return nil, err
	}
	s, err := e.Factory(env, spec.Args)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", spec.Name, err)
	}
	return stage.WithName(spec.String(), s), nil
}

// BuildAll builds a stage per spec, in order.
func (r *Registry) BuildAll(env Env, specs []Spec) ([]stage.Stage, error) {
	stages := make([]stage.Stage, 0, len(specs))
	for _, spec := range specs {
		s, err := r.Build(env, spec)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

func checkArgs(e Entry, args map[string]string) error {
	for k := range args {
		known := false
		for _, a := range e.Args {
			if a == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %s does not take argument %q", ErrInvalidSpec, e.Name, k)
		}
	}
	return nil
}

// intArg parses an optional positive integer argument.
func intArg(args map[string]string, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q must be a positive integer", ErrInvalidSpec, key, v)
	}
	return n, nil
}

var defaultRegistry = newDefaultRegistry()

// Default returns the registry of built-in stages.
func Default() *Registry {
	return defaultRegistry
}

// Catalogue lists the built-in stages in registration order.
func Catalogue() []Entry {
	return defaultRegistry.Entries()
}

// Inverse returns the built-in stage that undoes name.
func Inverse(name string) (string, bool) {
	return defaultRegistry.Inverse(name)
}

// Build constructs a built-in stage from spec text.
func Build(env Env, spec string) (stage.Stage, error) {
	s, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	return defaultRegistry.Build(env, s)
}

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Entry{
		Name:        "identity",
		Inverse:     "identity",
		Description: "pass bytes through unchanged",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return stage.Func(stage.Identity()), nil
		},
	})
	r.Register(Entry{
		Name:        "upper",
		Description: "ASCII upper-case",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return stage.Func(stage.Pure(Upper)), nil
		},
	})
	r.Register(Entry{
		Name:        "lower",
		Description: "ASCII lower-case",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return stage.Func(stage.Pure(Lower)), nil
		},
	})
	r.Register(Entry{
		Name:        "rot13",
		Inverse:     "rot13",
		Description: "rotate ASCII letters by 13",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return stage.Func(stage.Pure(Rot13)), nil
		},
	})
	r.Register(Entry{
		Name:        "replace",
		Description: "replace every occurrence of old with new, across chunk boundaries",
		Args:        []string{"old", "new"},
		Factory: func(_ Env, args map[string]string) (stage.Stage, error) {
			return NewReplacer([]byte(args["old"]), []byte(args["new"]))
		},
	})
	r.Register(Entry{
		Name:        "hex",
		Inverse:     "unhex",
		Description: "lower-case hex encode",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return stage.Func(stage.Pure(HexEncode)), nil
		},
	})
	r.Register(Entry{
		Name:        "unhex",
		Inverse:     "hex",
		Description: "hex decode (line breaks ignored)",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return NewHexDecoder(), nil
		},
	})
	r.Register(Entry{
		Name:        "base64-encode",
		Inverse:     "base64-decode",
		Description: "standard padded base64 encode",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return NewBase64Encoder(), nil
		},
	})
	r.Register(Entry{
		Name:        "base64-decode",
		Inverse:     "base64-encode",
		Description: "standard padded base64 decode (line breaks ignored)",
		Factory: func(Env, map[string]string) (stage.Stage, error) {
			return NewBase64Decoder(), nil
		},
	})
	r.Register(Entry{
		Name:        "encrypt",
		Inverse:     "decrypt",
		Description: "encrypt fixed-size blocks into length-prefixed frames",
		Args:        []string{"chunk"},
		Factory: func(env Env, args map[string]string) (stage.Stage, error) {
			size, err := intArg(args, "chunk", env.chunkSize())
			if err != nil {
				return nil, err
			}
			return NewEncrypter(env, size)
		},
	})
	r.Register(Entry{
		Name:        "decrypt",
		Inverse:     "encrypt",
		Description: "decrypt length-prefixed frames",
		Factory: func(env Env, _ map[string]string) (stage.Stage, error) {
			return NewDecrypter(env)
		},
	})
	r.Register(Entry{
		Name:        "compress",
		Inverse:     "decompress",
		Description: "zstd-compress fixed-size blocks into length-prefixed frames",
		Args:        []string{"chunk", "level"},
		Factory: func(env Env, args map[string]string) (stage.Stage, error) {
			size, err := intArg(args, "chunk", env.chunkSize())
			if err != nil {
				return nil, err
			}
			return NewCompressor(env, size, args["level"])
		},
	})
	r.Register(Entry{
		Name:        "decompress",
		Inverse:     "compress",
		Description: "zstd-decompress length-prefixed frames",
		Factory: func(env Env, _ map[string]string) (stage.Stage, error) {
			return NewDecompressor(env)
		},
	})
	return r
}
