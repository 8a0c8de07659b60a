// Package policy defines how pipeline output reaches the sink.
//
// The pipeline writes every produced chunk to a Policy. Strict forwards each
// write immediately, Buffered coalesces writes up to a byte limit, and Noop
// counts bytes without writing them. Flush is called once at end of run and
// must push everything still held to the sink.
package policy

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Policy names.
const (
	NameStrict   = "strict"
	NameBuffered = "buffered"
	NameNoop     = "noop"
)

// ErrUnknownPolicy is returned by New for an unrecognized name.
var ErrUnknownPolicy = errors.New("unknown write policy")

// ErrClosed is returned for writes after Close.
var ErrClosed = errors.New("policy closed")

// Policy is the pipeline's view of the sink.
//
// Write errors are fatal for the run. A Policy never closes its sink.
type Policy interface {
	io.Writer

	// Flush writes any buffered bytes to the sink.
	Flush() error

	// Close flushes and rejects further writes.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// Writes is the number of Write calls received from the pipeline.
	Writes int64 `json:"writes" yaml:"writes" msgpack:"writes"`
	// BytesReceived is the total bytes passed to Write.
	BytesReceived int64 `json:"bytes_received" yaml:"bytes_received" msgpack:"bytes_received"`
	// SinkWrites is the number of writes issued to the sink.
	SinkWrites int64 `json:"sink_writes" yaml:"sink_writes" msgpack:"sink_writes"`
	// BytesWritten is the total bytes the sink accepted.
	BytesWritten int64 `json:"bytes_written" yaml:"bytes_written" msgpack:"bytes_written"`
	// BufferSize is the current number of buffered bytes.
	BufferSize int64 `json:"buffer_size" yaml:"buffer_size" msgpack:"buffer_size"`
	// FlushCount is the number of flushes that wrote data.
	FlushCount int64 `json:"flush_count" yaml:"flush_count" msgpack:"flush_count"`
	// Errors is the number of failed sink writes.
	Errors int64 `json:"errors" yaml:"errors" msgpack:"errors"`
}

// Config selects and tunes a policy.
type Config struct {
	// Name is strict, buffered or noop. Empty selects strict.
	Name string
	// BufferBytes is the buffered policy's flush threshold.
	BufferBytes int
}

// New builds the named policy over sink.
func New(cfg Config, sink io.Writer) (Policy, error) {
	switch cfg.Name {
	case "", NameStrict:
		return NewStrictPolicy(sink), nil
	case NameBuffered:
		bc := DefaultBufferedConfig()
		if cfg.BufferBytes > 0 {
			bc.MaxBufferBytes = cfg.BufferBytes
		}
		return NewBufferedPolicy(sink, bc)
	case NameNoop:
		return NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Name)
	}
}

// statsRecorder is an internal helper for thread-safe stats management.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) received(n int) {
	r.mu.Lock()
	r.stats.Writes++
	r.stats.BytesReceived += int64(n)
	r.mu.Unlock()
}

func (r *statsRecorder) sinkWrite(n int, err error) {
	r.mu.Lock()
	r.stats.SinkWrites++
	r.stats.BytesWritten += int64(n)
	if err != nil {
		r.stats.Errors++
	}
	r.mu.Unlock()
}

func (r *statsRecorder) flushed() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) setBufferSize(n int) {
	r.mu.Lock()
	r.stats.BufferSize = int64(n)
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// writeAll writes p to w, reporting a short write as an error.
func writeAll(w io.Writer, p []byte, rec *statsRecorder) error {
	n, err := w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	rec.sinkWrite(n, err)
	return err
}
