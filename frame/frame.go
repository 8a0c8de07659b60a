// Package frame implements the length-prefixed chunk framing protocol.
//
// A frame is a 4-byte unsigned little-endian payload length followed by
// exactly that many payload bytes. There is no other header, no type tag and
// no trailer. A stream is a plain concatenation of frames; a stream that ends
// inside a header or payload is truncated.
//
// The Framer and Deframer stages put the protocol inside a pipeline and are
// correct for any chunking of the input. Reader and Writer do the same over
// plain io.Reader and io.Writer.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pithecene-io/conduit/metrics"
)

// Frame size constants.
const (
	// HeaderSize is the size of the length prefix in bytes.
	HeaderSize = 4
	// DefaultMaxPayloadSize is the payload limit (16 MiB) applied when no
	// WithMaxPayload option is given.
	DefaultMaxPayloadSize = 16 * 1024 * 1024
	// MaxEncodablePayload is the largest length a header can carry.
	MaxEncodablePayload = math.MaxUint32
)

// ByteOrder is the byte order of the length prefix.
var ByteOrder = binary.LittleEndian

// Sentinel errors matched by FrameError via errors.Is.
var (
	// ErrTruncated matches frame errors for streams that end mid-frame.
	ErrTruncated = errors.New("truncated frame")
	// ErrTooLarge matches frame errors for payloads over the limit.
	ErrTooLarge = errors.New("frame too large")
)

// FrameErrorKind classifies framing errors.
type FrameErrorKind int

const (
	// FrameErrorTruncated indicates the stream ended inside a header or payload.
	FrameErrorTruncated FrameErrorKind = iota
	// FrameErrorTooLarge indicates a payload exceeding the configured maximum.
	FrameErrorTooLarge
)

// String returns the kind name.
func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorTruncated:
		return "truncated"
	case FrameErrorTooLarge:
		return "too_large"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a framing error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *FrameError) Is(target error) bool {
	switch e.Kind {
	case FrameErrorTruncated:
		return target == ErrTruncated
	case FrameErrorTooLarge:
		return target == ErrTooLarge
	}
	return false
}

// IsFatal returns true if this error is fatal (terminate run).
// Truncated and oversized frames both are: the stream cannot be resynchronized.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorTruncated || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

func truncatedError(msg string, err error) *FrameError {
	return &FrameError{Kind: FrameErrorTruncated, Msg: msg, Err: err}
}

func tooLargeError(size, limit uint64) *FrameError {
	return &FrameError{
		Kind: FrameErrorTooLarge,
		Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", size, limit),
	}
}

// PutHeader writes the header for a payload of length n into dst[:HeaderSize].
func PutHeader(dst []byte, n uint32) {
	ByteOrder.PutUint32(dst, n)
}

// AppendHeader appends the header for a payload of length n.
func AppendHeader(dst []byte, n uint32) []byte {
	return ByteOrder.AppendUint32(dst, n)
}

// ParseHeader decodes a header. b must hold at least HeaderSize bytes.
func ParseHeader(b []byte) uint32 {
	return ByteOrder.Uint32(b[:HeaderSize])
}

// Encode returns payload wrapped in a single frame.
func Encode(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > MaxEncodablePayload {
		return nil, tooLargeError(uint64(len(payload)), MaxEncodablePayload)
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = AppendHeader(out, uint32(len(payload)))
	return append(out, payload...), nil
}

// options holds settings shared by framing stages, readers and writers.
type options struct {
	maxPayload uint64
	collector  *metrics.Collector
}

func defaultOptions() options {
	return options{maxPayload: DefaultMaxPayloadSize}
}

// Option configures framing limits and instrumentation.
type Option func(*options)

// WithMaxPayload sets the largest accepted payload. Non-positive values and
// values beyond MaxEncodablePayload fall back to the largest payload this
// platform can both encode and hold in an int.
func WithMaxPayload(n int) Option {
	return func(o *options) {
		limit := maxAddressablePayload()
		if n <= 0 || uint64(n) > limit {
			o.maxPayload = limit
			return
		}
		o.maxPayload = uint64(n)
	}
}

// maxAddressablePayload is MaxEncodablePayload capped at math.MaxInt, so an
// accepted length always converts to int without wrapping.
func maxAddressablePayload() uint64 {
	if uint64(math.MaxInt) < MaxEncodablePayload {
		return uint64(math.MaxInt)
	}
	return MaxEncodablePayload
}

// WithCollector records frame counters on c.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checkSize returns a TooLarge error when size exceeds the limit.
func (o options) checkSize(size uint64) error {
	if size > o.maxPayload {
		o.collector.IncFrameTooLarge()
		return tooLargeError(size, o.maxPayload)
	}
	return nil
}
