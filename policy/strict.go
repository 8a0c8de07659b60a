package policy

import (
	"io"
	"sync"
)

// StrictPolicy implements synchronous, unbuffered output.
//
//   - No buffering: each produced chunk is written immediately
//   - Backpressure: the pipeline blocks on sink latency
//   - Sink errors fail the run
type StrictPolicy struct {
	sink io.Writer

	mu     sync.Mutex
	closed bool
	stats  statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink io.Writer) *StrictPolicy {
	return &StrictPolicy{sink: sink}
}

// Write forwards p to the sink.
func (p *StrictPolicy) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	p.stats.received(len(b))
	if err := writeAll(p.sink, b, &p.stats); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush() error {
	return nil
}

// Close rejects further writes.
func (p *StrictPolicy) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}
