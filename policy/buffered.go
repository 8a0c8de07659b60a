package policy

import (
	"errors"
	"io"
	"sync"

	"github.com/pithecene-io/conduit/log"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferBytes is the buffer size that triggers a write to the sink.
	MaxBufferBytes int

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferBytes: 1024 * 1024, // 1 MiB
	}
}

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: MaxBufferBytes must be positive")

// BufferedPolicy coalesces small writes into larger sink writes.
//
//   - Bytes are held until the buffer reaches MaxBufferBytes
//   - A write that fills the buffer triggers one sink write of the whole buffer
//   - Flush writes whatever remains
//   - On a failed sink write the buffer is kept; output order is never changed
type BufferedPolicy struct {
	sink   io.Writer
	config BufferedConfig
	logger *log.Logger

	mu     sync.Mutex // guards buffer state
	buf    []byte
	closed bool
	stats  statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink io.Writer, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buf:    make([]byte, 0, config.MaxBufferBytes),
	}, nil
}

// Write buffers b, writing the buffer to the sink once it is full.
func (p *BufferedPolicy) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	p.stats.received(len(b))

	p.buf = append(p.buf, b...)
	p.stats.setBufferSize(len(p.buf))
	if len(p.buf) >= p.config.MaxBufferBytes {
		if err := p.flushLocked("size"); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// Flush writes all buffered bytes to the sink.
func (p *BufferedPolicy) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked("explicit")
}

// flushLocked writes the buffer. Caller must hold mu.
func (p *BufferedPolicy) flushLocked(trigger string) error {
	if len(p.buf) == 0 {
		return nil
	}
	size := len(p.buf)
	if err := writeAll(p.sink, p.buf, &p.stats); err != nil {
		if p.logger != nil {
			p.logger.Error("buffered flush failed", map[string]any{
				"trigger": trigger,
				"bytes":   size,
				"error":   err.Error(),
			})
		}
		return err
	}
	p.buf = p.buf[:0]
	p.stats.setBufferSize(0)
	p.stats.flushed()
	if p.logger != nil {
		p.logger.Debug("buffered flush", map[string]any{
			"trigger": trigger,
			"bytes":   size,
		})
	}
	return nil
}

// Close flushes remaining bytes and rejects further writes.
func (p *BufferedPolicy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.flushLocked("close")
}

// Stats returns policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	return p.stats.snapshot()
}
