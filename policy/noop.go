package policy

import "sync"

// NoopPolicy accepts output but does not write it anywhere.
// Used for dry runs, where only counters and the output digest matter.
type NoopPolicy struct {
	mu     sync.Mutex
	closed bool
	stats  statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// Write counts b and discards it.
func (p *NoopPolicy) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	p.stats.received(len(b))
	return len(b), nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush() error { return nil }

// Close rejects further writes.
func (p *NoopPolicy) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Stats returns policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}
