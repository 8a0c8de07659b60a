package lode

import (
	"time"

	"github.com/pithecene-io/conduit/metrics"
	"github.com/pithecene-io/conduit/types"
)

// RecordKindRunReport discriminates run report records in the dataset.
const RecordKindRunReport = "run_report"

// DeriveDay computes the partition day from run start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// ReportRecord is the storage format for a completed run.
// Partition keys (day, run_id) are carried as ordinary fields for HiveLayout.
type ReportRecord struct {
	RecordKind string `json:"record_kind"`

	RunID  string  `json:"run_id"`
	JobID  *string `json:"job_id,omitempty"`
	Day    string  `json:"day"`
	Status string  `json:"status"`
	// Message is the outcome message; empty on success.
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`

	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	DurationMs  int64  `json:"duration_ms"`

	Stages         string `json:"stages"`
	Policy         string `json:"policy"`
	StorageBackend string `json:"storage_backend,omitempty"`

	ChunksRead      int64  `json:"chunks_read_total"`
	BytesIn         int64  `json:"bytes_in_total"`
	BytesOut        int64  `json:"bytes_out_total"`
	SinkWrites      int64  `json:"sink_writes_total"`
	NeedMoreInput   int64  `json:"need_more_input_total"`
	FramesEncoded   int64  `json:"frames_encoded_total"`
	FramesDecoded   int64  `json:"frames_decoded_total"`
	FramesTruncated int64  `json:"frames_truncated_total"`
	FramesTooLarge  int64  `json:"frames_too_large_total"`
	OutputDigest    string `json:"output_digest,omitempty"`
}

// NewReportRecord builds a report record from a run's metrics and outcome.
func NewReportRecord(meta types.RunMeta, outcome types.RunOutcome, snap metrics.Snapshot, started, completed time.Time) ReportRecord {
	return ReportRecord{
		RecordKind:      RecordKindRunReport,
		RunID:           meta.RunID,
		JobID:           meta.JobID,
		Day:             DeriveDay(started),
		Status:          string(outcome.Status),
		Message:         outcome.Message,
		Stage:           outcome.Stage,
		StartedAt:       started.UTC().Format(time.RFC3339Nano),
		CompletedAt:     completed.UTC().Format(time.RFC3339Nano),
		DurationMs:      completed.Sub(started).Milliseconds(),
		Stages:          snap.Stages,
		Policy:          snap.Policy,
		StorageBackend:  snap.StorageBackend,
		ChunksRead:      snap.ChunksRead,
		BytesIn:         snap.BytesIn,
		BytesOut:        snap.BytesOut,
		SinkWrites:      snap.SinkWrites,
		NeedMoreInput:   snap.NeedMoreInput,
		FramesEncoded:   snap.FramesEncoded,
		FramesDecoded:   snap.FramesDecoded,
		FramesTruncated: snap.FramesTruncated,
		FramesTooLarge:  snap.FramesTooLarge,
		OutputDigest:    snap.OutputDigest,
	}
}

// toRecordMap converts a record to the map form written to the dataset.
// Lode's JSONL codec round-trips maps; numeric fields come back as float64.
func toRecordMap(r ReportRecord) map[string]any {
	m := map[string]any{
		"record_kind":            r.RecordKind,
		"run_id":                 r.RunID,
		"day":                    r.Day,
		"status":                 r.Status,
		"started_at":             r.StartedAt,
		"completed_at":           r.CompletedAt,
		"duration_ms":            r.DurationMs,
		"stages":                 r.Stages,
		"policy":                 r.Policy,
		"chunks_read_total":      r.ChunksRead,
		"bytes_in_total":         r.BytesIn,
		"bytes_out_total":        r.BytesOut,
		"sink_writes_total":      r.SinkWrites,
		"need_more_input_total":  r.NeedMoreInput,
		"frames_encoded_total":   r.FramesEncoded,
		"frames_decoded_total":   r.FramesDecoded,
		"frames_truncated_total": r.FramesTruncated,
		"frames_too_large_total": r.FramesTooLarge,
	}
	if r.JobID != nil {
		m["job_id"] = *r.JobID
	}
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.Stage != "" {
		m["stage"] = r.Stage
	}
	if r.StorageBackend != "" {
		m["storage_backend"] = r.StorageBackend
	}
	if r.OutputDigest != "" {
		m["output_digest"] = r.OutputDigest
	}
	return m
}

// fromRecordMap is the inverse of toRecordMap.
func fromRecordMap(m map[string]any) ReportRecord {
	r := ReportRecord{
		RecordKind:      toString(m["record_kind"]),
		RunID:           toString(m["run_id"]),
		Day:             toString(m["day"]),
		Status:          toString(m["status"]),
		Message:         toString(m["message"]),
		Stage:           toString(m["stage"]),
		StartedAt:       toString(m["started_at"]),
		CompletedAt:     toString(m["completed_at"]),
		DurationMs:      toInt64(m["duration_ms"]),
		Stages:          toString(m["stages"]),
		Policy:          toString(m["policy"]),
		StorageBackend:  toString(m["storage_backend"]),
		ChunksRead:      toInt64(m["chunks_read_total"]),
		BytesIn:         toInt64(m["bytes_in_total"]),
		BytesOut:        toInt64(m["bytes_out_total"]),
		SinkWrites:      toInt64(m["sink_writes_total"]),
		NeedMoreInput:   toInt64(m["need_more_input_total"]),
		FramesEncoded:   toInt64(m["frames_encoded_total"]),
		FramesDecoded:   toInt64(m["frames_decoded_total"]),
		FramesTruncated: toInt64(m["frames_truncated_total"]),
		FramesTooLarge:  toInt64(m["frames_too_large_total"]),
		OutputDigest:    toString(m["output_digest"]),
	}
	if job := toString(m["job_id"]); job != "" {
		r.JobID = &job
	}
	return r
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a decoded JSON number to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
