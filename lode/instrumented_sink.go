package lode

import (
	"context"

	"github.com/pithecene-io/conduit/metrics"
)

// InstrumentedSink wraps a Sink and records lode_write_success or
// lode_write_failure on the collector for every report write.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteReport delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteReport(ctx context.Context, record ReportRecord) error {
	err := s.inner.WriteReport(ctx, record)
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ Sink = (*InstrumentedSink)(nil)
