// Package endpoint opens pipeline sources and sinks from location strings.
//
// Locations:
//
//	-             stdin (source) or stdout (sink)
//	str:<text>    a literal source
//	lode://<key>  an object on the configured Lode store
//	file://<path> or a bare path  a local file
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pithecene-io/conduit/iox"
	"github.com/pithecene-io/conduit/lode"
)

// Location prefixes.
const (
	Stdio        = "-"
	StringPrefix = "str:"
	LodePrefix   = "lode://"
	FilePrefix   = "file://"
)

// Kind classifies a location.
type Kind int

// Location kinds.
const (
	KindStdio Kind = iota + 1
	KindString
	KindLode
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindStdio:
		return "stdio"
	case KindString:
		return "string"
	case KindLode:
		return "lode"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrEmptyLocation is returned for an empty location string.
	ErrEmptyLocation = errors.New("empty location")
	// ErrNoStore is returned for lode:// locations when no store is configured.
	ErrNoStore = errors.New("lode location requires configured storage")
	// ErrNotSink is returned when a source-only location is used as a sink.
	ErrNotSink = errors.New("location cannot be used as a sink")
)

// Location is a parsed source or sink location.
type Location struct {
	Kind Kind
	// Value is the path, object key or literal text.
	Value string
}

// Parse classifies a location string.
func Parse(s string) (Location, error) {
	switch {
	case s == "":
		return Location{}, ErrEmptyLocation
	case s == Stdio:
		return Location{Kind: KindStdio}, nil
	case strings.HasPrefix(s, StringPrefix):
		return Location{Kind: KindString, Value: strings.TrimPrefix(s, StringPrefix)}, nil
	case strings.HasPrefix(s, LodePrefix):
		key := strings.TrimPrefix(s, LodePrefix)
		if _, err := lode.ObjectPath(key); err != nil {
			return Location{}, err
		}
		return Location{Kind: KindLode, Value: key}, nil
	case strings.HasPrefix(s, FilePrefix):
		return Location{Kind: KindFile, Value: strings.TrimPrefix(s, FilePrefix)}, nil
	default:
		return Location{Kind: KindFile, Value: s}, nil
	}
}

func (l Location) String() string {
	switch l.Kind {
	case KindStdio:
		return Stdio
	case KindString:
		return StringPrefix + l.Value
	case KindLode:
		return LodePrefix + l.Value
	default:
		return l.Value
	}
}

// Options supplies the process streams and the optional object store.
type Options struct {
	// Stdin and Stdout default to os.Stdin and os.Stdout.
	Stdin  io.Reader
	Stdout io.Writer
	// Objects serves lode:// locations. May be nil.
	Objects *lode.Objects
}

func (o Options) stdin() io.Reader {
	if o.Stdin != nil {
		return o.Stdin
	}
	return os.Stdin
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

// OpenSource opens a location for reading. The caller closes the result;
// closing stdin is a no-op.
func OpenSource(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}

	switch loc.Kind {
	case KindStdio:
		return io.NopCloser(opts.stdin()), nil
	case KindString:
		return io.NopCloser(strings.NewReader(loc.Value)), nil
	case KindLode:
		if opts.Objects == nil {
			return nil, ErrNoStore
		}
		return opts.Objects.Open(ctx, loc.Value)
	default:
		f, err := os.Open(loc.Value)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		return f, nil
	}
}

// OpenSink opens a location for writing. Files are created or truncated.
// The caller must Close the result; for lode:// sinks Close completes the
// upload and reports its error.
func OpenSink(ctx context.Context, location string, opts Options) (io.WriteCloser, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}

	switch loc.Kind {
	case KindStdio:
		return iox.NopWriteCloser(opts.stdout()), nil
	case KindString:
		return nil, fmt.Errorf("%w: %s", ErrNotSink, location)
	case KindLode:
		if opts.Objects == nil {
			return nil, ErrNoStore
		}
		return opts.Objects.Create(ctx, loc.Value)
	default:
		f, err := os.Create(loc.Value)
		if err != nil {
			return nil, fmt.Errorf("create sink: %w", err)
		}
		return f, nil
	}
}

// Abort discards a partially written sink when it supports it and closes
// it otherwise. Files keep whatever was written; output is never rolled back.
func Abort(w io.WriteCloser, cause error) error {
	if a, ok := w.(lode.Aborter); ok {
		return a.Abort(cause)
	}
	return w.Close()
}
