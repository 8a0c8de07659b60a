// Package reader provides the read-side data access layer for the conduit CLI.
//
// Read-only commands (inspect, runs, stats) use this package exclusively.
// Nothing here writes to a sink or the report dataset.
package reader

import "github.com/pithecene-io/conduit/frame"

// InspectFramesResponse describes the frame layout of a stream.
type InspectFramesResponse struct {
	Source       string       `json:"source" yaml:"source"`
	Frames       []frame.Info `json:"frames" yaml:"frames"`
	FrameCount   int          `json:"frame_count" yaml:"frame_count"`
	PayloadBytes int64        `json:"payload_bytes" yaml:"payload_bytes"`
	StreamBytes  int64        `json:"stream_bytes" yaml:"stream_bytes"`
	MaxPayload   int          `json:"max_payload" yaml:"max_payload"`
	// Complete is false when the stream ended inside a frame or a header
	// announced an oversized payload.
	Complete bool   `json:"complete" yaml:"complete"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// InspectRunResponse is the detail view of one stored run report.
type InspectRunResponse struct {
	RunID          string `json:"run_id" yaml:"run_id"`
	JobID          string `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Status         string `json:"status" yaml:"status"`
	Message        string `json:"message,omitempty" yaml:"message,omitempty"`
	Stage          string `json:"stage,omitempty" yaml:"stage,omitempty"`
	Day            string `json:"day" yaml:"day"`
	StartedAt      string `json:"started_at" yaml:"started_at"`
	CompletedAt    string `json:"completed_at" yaml:"completed_at"`
	DurationMs     int64  `json:"duration_ms" yaml:"duration_ms"`
	Stages         string `json:"stages" yaml:"stages"`
	Policy         string `json:"policy" yaml:"policy"`
	StorageBackend string `json:"storage_backend,omitempty" yaml:"storage_backend,omitempty"`
	OutputDigest   string `json:"output_digest,omitempty" yaml:"output_digest,omitempty"`
}

// RunStats holds the counters of one stored run report.
type RunStats struct {
	RunID           string `json:"run_id" yaml:"run_id"`
	Status          string `json:"status" yaml:"status"`
	ChunksRead      int64  `json:"chunks_read" yaml:"chunks_read"`
	BytesIn         int64  `json:"bytes_in" yaml:"bytes_in"`
	BytesOut        int64  `json:"bytes_out" yaml:"bytes_out"`
	SinkWrites      int64  `json:"sink_writes" yaml:"sink_writes"`
	NeedMoreInput   int64  `json:"need_more_input" yaml:"need_more_input"`
	FramesEncoded   int64  `json:"frames_encoded" yaml:"frames_encoded"`
	FramesDecoded   int64  `json:"frames_decoded" yaml:"frames_decoded"`
	FramesTruncated int64  `json:"frames_truncated" yaml:"frames_truncated"`
	FramesTooLarge  int64  `json:"frames_too_large" yaml:"frames_too_large"`
}

// ListRunItem is the thin list view of a stored run report.
type ListRunItem struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	Status     string `json:"status" yaml:"status"`
	Day        string `json:"day" yaml:"day"`
	Stages     string `json:"stages" yaml:"stages"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	BytesOut   int64  `json:"bytes_out" yaml:"bytes_out"`
}

// ListRunsOptions filters ListRuns.
type ListRunsOptions struct {
	RunID  string
	Status string
	Limit  int
}
