package lode

import (
	"context"
	"sync"
)

// Sink persists run reports.
type Sink interface {
	// WriteReport persists one run report.
	WriteReport(ctx context.Context, record ReportRecord) error
	// Close releases sink resources.
	Close() error
}

// StubSink records reports in memory for testing.
type StubSink struct {
	mu      sync.Mutex
	Reports []ReportRecord
	// WriteErr, when set, is returned from every WriteReport.
	WriteErr error
	Closed   bool
}

// WriteReport implements Sink.
func (s *StubSink) WriteReport(_ context.Context, record ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Reports = append(s.Reports, record)
	return nil
}

// Close implements Sink.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

var _ Sink = (*StubSink)(nil)
