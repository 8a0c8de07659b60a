package lode

import (
	"context"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// ReportClient is a Lode-backed Sink for run reports.
// Records land under the Hive layout day/run_id of the report dataset.
type ReportClient struct {
	mu      sync.Mutex // serializes dataset writes
	dataset lode.Dataset
}

// NewReportClient creates a report client over the given store factory.
// Use lode.NewMemoryFactory() for testing.
func NewReportClient(dataset string, factory lode.StoreFactory) (*ReportClient, error) {
	ds, err := NewReportDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &ReportClient{dataset: ds}, nil
}

// WriteReport writes a single report record as its own snapshot.
func (c *ReportClient) WriteReport(ctx context.Context, record ReportRecord) error {
	if record.RecordKind == "" {
		record.RecordKind = RecordKindRunReport
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.dataset.Write(ctx, []any{toRecordMap(record)}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, string(c.dataset.ID())+"/run_id="+record.RunID)
	}
	return nil
}

// Close releases client resources.
func (c *ReportClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ Sink = (*ReportClient)(nil)
