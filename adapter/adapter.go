// Package adapter defines the boundary for run completion notifications.
//
// Adapters publish one RunCompletedEvent per finished run to a downstream
// system. The runtime owns adapter lifecycle; users provide configuration
// only. A failed publish is logged and never changes a run's outcome.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ContractVersion is the version of the RunCompletedEvent shape.
const ContractVersion = "1.0.0"

// EventTypeRunCompleted is the only event type adapters publish.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	ContractVersion string `json:"contract_version" msgpack:"contract_version"`
	EventType       string `json:"event_type" msgpack:"event_type"`
	RunID           string `json:"run_id" msgpack:"run_id"`
	JobID           string `json:"job_id,omitempty" msgpack:"job_id,omitempty"`
	Day             string `json:"day" msgpack:"day"`
	Outcome         string `json:"outcome" msgpack:"outcome"` // success, framing_error, etc.
	Message         string `json:"message,omitempty" msgpack:"message,omitempty"`
	Source          string `json:"source" msgpack:"source"`
	Sink            string `json:"sink" msgpack:"sink"`
	Stages          string `json:"stages" msgpack:"stages"`
	// StoragePath is the object key when the sink is a lode:// location.
	StoragePath  string `json:"storage_path,omitempty" msgpack:"storage_path,omitempty"`
	Timestamp    string `json:"timestamp" msgpack:"timestamp"` // RFC 3339
	DurationMs   int64  `json:"duration_ms" msgpack:"duration_ms"`
	BytesIn      int64  `json:"bytes_in" msgpack:"bytes_in"`
	BytesOut     int64  `json:"bytes_out" msgpack:"bytes_out"`
	OutputDigest string `json:"output_digest,omitempty" msgpack:"output_digest,omitempty"`
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Encoding selects the wire form of a published event.
type Encoding string

// Encodings.
const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ContentType returns the MIME type for the encoding.
func (e Encoding) ContentType() string {
	if e == EncodingMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Encode marshals event in the given encoding. Empty means JSON.
func Encode(event *RunCompletedEvent, enc Encoding) ([]byte, error) {
	switch enc {
	case "", EncodingJSON:
		return json.Marshal(event)
	case EncodingMsgpack:
		return msgpack.Marshal(event)
	default:
		return nil, fmt.Errorf("unknown event encoding %q", enc)
	}
}

// Recorder is an in-memory Adapter for tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	Events []*RunCompletedEvent
	// Err, when set, is returned from every Publish.
	Err    error
	Closed bool
}

// Publish records the event.
func (r *Recorder) Publish(_ context.Context, event *RunCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, event)
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

var _ Adapter = (*Recorder)(nil)
