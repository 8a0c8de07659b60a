package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoReportFound is returned when no matching report exists in the dataset.
var ErrNoReportFound = errors.New("no run report found")

// QueryLatestReport finds the most recent report, filtered by runID when
// non-empty.
func QueryLatestReport(ctx context.Context, ds lode.Dataset, runID string) (ReportRecord, error) {
	reports, err := QueryReports(ctx, ds, runID, 1)
	if err != nil {
		return ReportRecord{}, err
	}
	if len(reports) == 0 {
		return ReportRecord{}, ErrNoReportFound
	}
	return reports[0], nil
}

// QueryReports returns up to limit reports, latest first. A limit <= 0
// returns all of them.
func QueryReports(ctx context.Context, ds lode.Dataset, runID string, limit int) ([]ReportRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var out []ReportRecord
	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !(partitionFilter{PartitionRunID: runID}).matches(snap) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are authoritative.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindRunReport {
				continue
			}
			if runID != "" && toString(m["run_id"]) != runID {
				continue
			}
			out = append(out, fromRecordMap(m))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
