// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single pipeline run. It is a
// leaf package with no internal dependencies. Sink write counters are
// absorbed from policy.Stats at run completion rather than recorded live,
// avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64

	// Source
	ChunksRead int64
	BytesIn    int64

	// Sink (absorbed from policy.Stats at run completion)
	BytesOut         int64
	SinkWrites       int64
	SinkWriteFailure int64
	SinkFlushes      int64

	// Stages
	NeedMoreInput int64
	StageErrors   int64

	// Framing
	FramesEncoded   int64
	FramesDecoded   int64
	FramesTruncated int64
	FramesTooLarge  int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Adapter
	AdapterPublishSuccess int64
	AdapterPublishFailure int64

	// OutputDigest is the hex SHA-256 of everything written to the sink.
	OutputDigest string

	// Dimensions (informational, set at construction)
	Policy         string
	Stages         string
	StorageBackend string
	RunID          string
	JobID          string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe, so
// components can hold a nil *Collector when metrics are not wanted.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64

	chunksRead int64
	bytesIn    int64

	bytesOut         int64
	sinkWrites       int64
	sinkWriteFailure int64
	sinkFlushes      int64

	needMoreInput int64
	stageErrors   int64

	framesEncoded   int64
	framesDecoded   int64
	framesTruncated int64
	framesTooLarge  int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	adapterPublishSuccess int64
	adapterPublishFailure int64

	outputDigest string

	// Dimensions
	policy         string
	stages         string
	storageBackend string
	runID          string
	jobID          string
}

// NewCollector creates a Collector with dimension labels.
// stages is the display form of the stage chain (e.g. "upper|encrypt").
// runID and jobID are optional dimensions.
func NewCollector(policy, stages, storageBackend, runID, jobID string) *Collector {
	return &Collector{
		policy:         policy,
		stages:         stages,
		storageBackend: storageBackend,
		runID:          runID,
		jobID:          jobID,
	}
}

// add is the single mutation path for counters.
func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.add(&c.runsStarted, 1)
}

// IncRunCompleted records a successful run completion.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.add(&c.runsCompleted, 1)
}

// IncRunFailed records a run that ended with any error outcome.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.add(&c.runsFailed, 1)
}

// --- Source ---

// AddChunkRead records one source read that returned n > 0 bytes.
func (c *Collector) AddChunkRead(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksRead++
	c.bytesIn += int64(n)
	c.mu.Unlock()
}

// --- Stages ---

// IncNeedMoreInput records a NeedMoreInput short-circuit.
func (c *Collector) IncNeedMoreInput() {
	if c == nil {
		return
	}
	c.add(&c.needMoreInput, 1)
}

// IncStageError records a stage returning an error.
func (c *Collector) IncStageError() {
	if c == nil {
		return
	}
	c.add(&c.stageErrors, 1)
}

// --- Framing ---

// IncFrameEncoded records one frame header written.
func (c *Collector) IncFrameEncoded() {
	if c == nil {
		return
	}
	c.add(&c.framesEncoded, 1)
}

// IncFrameDecoded records one complete frame payload handed to a handler.
func (c *Collector) IncFrameDecoded() {
	if c == nil {
		return
	}
	c.add(&c.framesDecoded, 1)
}

// IncFrameTruncated records a stream that ended inside a frame.
func (c *Collector) IncFrameTruncated() {
	if c == nil {
		return
	}
	c.add(&c.framesTruncated, 1)
}

// IncFrameTooLarge records a header or payload over the size limit.
func (c *Collector) IncFrameTooLarge() {
	if c == nil {
		return
	}
	c.add(&c.framesTooLarge, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure, 1)
}

// --- Adapter ---

// IncAdapterPublishSuccess records a delivered completion notification.
func (c *Collector) IncAdapterPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.adapterPublishSuccess, 1)
}

// IncAdapterPublishFailure records a notification that was not delivered.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.adapterPublishFailure, 1)
}

// --- Sink (absorbed from policy.Stats) ---

// AbsorbSinkStats copies sink counters from policy.Stats into the collector.
// Called once after run completion with the final policy stats snapshot.
func (c *Collector) AbsorbSinkStats(writes, failures, flushes, bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWrites = writes
	c.sinkWriteFailure = failures
	c.sinkFlushes = flushes
	c.bytesOut = bytes
	c.mu.Unlock()
}

// SetOutputDigest records the hex digest of the sink output.
func (c *Collector) SetOutputDigest(digest string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.outputDigest = digest
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsFailed:    c.runsFailed,

		ChunksRead: c.chunksRead,
		BytesIn:    c.bytesIn,

		BytesOut:         c.bytesOut,
		SinkWrites:       c.sinkWrites,
		SinkWriteFailure: c.sinkWriteFailure,
		SinkFlushes:      c.sinkFlushes,

		NeedMoreInput: c.needMoreInput,
		StageErrors:   c.stageErrors,

		FramesEncoded:   c.framesEncoded,
		FramesDecoded:   c.framesDecoded,
		FramesTruncated: c.framesTruncated,
		FramesTooLarge:  c.framesTooLarge,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		OutputDigest: c.outputDigest,

		Policy:         c.policy,
		Stages:         c.stages,
		StorageBackend: c.storageBackend,
		RunID:          c.runID,
		JobID:          c.jobID,
	}
}
