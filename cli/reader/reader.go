package reader

import (
	"context"
	"errors"
	"fmt"
	"io"

	lodelib "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/conduit/frame"
	"github.com/pithecene-io/conduit/lode"
)

// InspectFrames scans r as a length-prefixed frame stream.
//
// Framing faults are part of the answer: a truncated or oversized frame
// ends the scan and is reported in the response with Complete=false.
// Only source read failures are returned as errors.
func InspectFrames(r io.Reader, source string, maxPayload int) (*InspectFramesResponse, error) {
	if maxPayload <= 0 {
		maxPayload = frame.DefaultMaxPayloadSize
	}
	resp := &InspectFramesResponse{
		Source:     source,
		Frames:     []frame.Info{},
		MaxPayload: maxPayload,
		Complete:   true,
	}

	err := frame.Scan(r, func(info frame.Info, _ []byte) error {
		resp.Frames = append(resp.Frames, info)
		resp.PayloadBytes += int64(info.Length)
		resp.StreamBytes = info.Offset + frame.HeaderSize + int64(info.Length)
		return nil
	}, frame.WithMaxPayload(maxPayload))
	resp.FrameCount = len(resp.Frames)

	switch {
	case err == nil:
		return resp, nil
	case frame.IsFatalFrameError(err):
		resp.Complete = false
		resp.Error = err.Error()
		return resp, nil
	default:
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
}

// Reader answers run queries from the report dataset.
type Reader struct {
	ds lodelib.Dataset
}

// New creates a reader over an existing report dataset.
func New(ds lodelib.Dataset) *Reader {
	return &Reader{ds: ds}
}

// Open connects to the report dataset described by cfg.
func Open(ctx context.Context, cfg lode.Config) (*Reader, error) {
	factory, err := lode.NewFactory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ds, err := lode.NewReportDataset(cfg.DatasetID(), factory)
	if err != nil {
		return nil, lode.WrapInitError(err, cfg.DatasetID())
	}
	return New(ds), nil
}

// InspectRun returns the latest report for runID.
func (r *Reader) InspectRun(ctx context.Context, runID string) (*InspectRunResponse, error) {
	rec, err := lode.QueryLatestReport(ctx, r.ds, runID)
	if err != nil {
		return nil, err
	}
	resp := &InspectRunResponse{
		RunID:          rec.RunID,
		Status:         rec.Status,
		Message:        rec.Message,
		Stage:          rec.Stage,
		Day:            rec.Day,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
		DurationMs:     rec.DurationMs,
		Stages:         rec.Stages,
		Policy:         rec.Policy,
		StorageBackend: rec.StorageBackend,
		OutputDigest:   rec.OutputDigest,
	}
	if rec.JobID != nil {
		resp.JobID = *rec.JobID
	}
	return resp, nil
}

// StatsRun returns the counters of the latest report for runID.
func (r *Reader) StatsRun(ctx context.Context, runID string) (*RunStats, error) {
	rec, err := lode.QueryLatestReport(ctx, r.ds, runID)
	if err != nil {
		return nil, err
	}
	return &RunStats{
		RunID:           rec.RunID,
		Status:          rec.Status,
		ChunksRead:      rec.ChunksRead,
		BytesIn:         rec.BytesIn,
		BytesOut:        rec.BytesOut,
		SinkWrites:      rec.SinkWrites,
		NeedMoreInput:   rec.NeedMoreInput,
		FramesEncoded:   rec.FramesEncoded,
		FramesDecoded:   rec.FramesDecoded,
		FramesTruncated: rec.FramesTruncated,
		FramesTooLarge:  rec.FramesTooLarge,
	}, nil
}

// ListRuns returns stored runs, latest first.
// An empty dataset yields an empty slice, not an error.
func (r *Reader) ListRuns(ctx context.Context, opts ListRunsOptions) ([]ListRunItem, error) {
	// The status filter runs after the query, so the limit is applied here.
	queryLimit := opts.Limit
	if opts.Status != "" {
		queryLimit = 0
	}
	recs, err := lode.QueryReports(ctx, r.ds, opts.RunID, queryLimit)
	if err != nil && !errors.Is(err, lode.ErrNoReportFound) {
		return nil, err
	}

	items := make([]ListRunItem, 0, len(recs))
	for _, rec := range recs {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		items = append(items, ListRunItem{
			RunID:      rec.RunID,
			Status:     rec.Status,
			Day:        rec.Day,
			Stages:     rec.Stages,
			DurationMs: rec.DurationMs,
			BytesOut:   rec.BytesOut,
		})
		if opts.Limit > 0 && len(items) >= opts.Limit {
			break
		}
	}
	return items, nil
}
