package policy

import (
	"bytes"
	"sync"
)

// StubSink is a test sink that records writes.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// Writes records each Write call's payload, in order.
	Writes [][]byte
	// ErrorOnWrite, if non-nil, is returned by Write.
	ErrorOnWrite error

	buf bytes.Buffer
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// Write records p.
func (s *StubSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrorOnWrite != nil {
		return 0, s.ErrorOnWrite
	}
	s.Writes = append(s.Writes, bytes.Clone(p))
	s.buf.Write(p)
	return len(p), nil
}

// Bytes returns everything written so far.
func (s *StubSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// WriteCount returns the number of Write calls that succeeded.
func (s *StubSink) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}
