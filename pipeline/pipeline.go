// Package pipeline drives a byte source through an ordered list of stages
// into a sink.
//
// The Pipeline is the only caller of Stage.Process and Stage.Flush. Each
// source read is pushed through the stages in order: Produced output feeds
// the next stage, NeedMoreInput ends the round at that stage. Bytes that
// leave the last stage are written to the sink.
//
// At end of input the stages are flushed in order. Whatever stage i emits
// on Flush is pushed through stages i+1..n before stage i+1 is flushed, so
// no stage is flushed while bytes destined for it are still upstream.
//
// Any error aborts the run. Output already written is not rolled back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pithecene-io/conduit/log"
	"github.com/pithecene-io/conduit/metrics"
	"github.com/pithecene-io/conduit/stage"
)

// DefaultReadSize is the source read size used when none is configured.
const DefaultReadSize = 8192

var (
	// ErrPipelineUsed is returned when Run is called a second time.
	ErrPipelineUsed = errors.New("pipeline already ran")
	// ErrInvalidReadSize is returned for a non-positive read size.
	ErrInvalidReadSize = errors.New("read size must be positive")
	// ErrFlushNeedsInput is returned when a stage answers Flush with
	// NeedMoreInput, which would silently drop its buffered bytes.
	ErrFlushNeedsInput = errors.New("stage requested more input at end of stream")
)

// Phase names the pipeline step during which a stage failed.
type Phase string

// Phases.
const (
	PhaseProcess Phase = "process"
	PhaseFlush   Phase = "flush"
)

// StageError wraps an error returned by a stage with its position.
type StageError struct {
	Stage string
	Index int
	Phase Phase
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s) %s: %v", e.Index, e.Stage, e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SourceError wraps a failed read from the source.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source read: %v", e.Err) }

func (e *SourceError) Unwrap() error { return e.Err }

// SinkError wraps a failed write to the sink.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink write: %v", e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// Stats summarizes a run.
type Stats struct {
	ChunksRead    int64 `json:"chunks_read" yaml:"chunks_read" msgpack:"chunks_read"`
	BytesIn       int64 `json:"bytes_in" yaml:"bytes_in" msgpack:"bytes_in"`
	BytesOut      int64 `json:"bytes_out" yaml:"bytes_out" msgpack:"bytes_out"`
	Writes        int64 `json:"writes" yaml:"writes" msgpack:"writes"`
	NeedMoreInput int64 `json:"need_more_input" yaml:"need_more_input" msgpack:"need_more_input"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReadSize sets how many bytes are requested from the source per read.
func WithReadSize(n int) Option {
	return func(p *Pipeline) {
		p.readSize = n
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCollector records run counters on c.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Pipeline) {
		p.collector = c
	}
}

// Pipeline owns an ordered list of stages. It runs once.
type Pipeline struct {
	stages    []stage.Stage
	readSize  int
	logger    *log.Logger
	collector *metrics.Collector
	used      bool
	stats     Stats
}

// New creates a pipeline over stages. An empty list copies source to sink.
func New(stages []stage.Stage, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		stages:   append([]stage.Stage(nil), stages...),
		readSize: DefaultReadSize,
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.readSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidReadSize, p.readSize)
	}
	for i, s := range p.stages {
		if s == nil {
			return nil, fmt.Errorf("stage %d is nil", i)
		}
	}
	return p, nil
}

// Names returns the display names of the stages in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = stage.NameOf(s)
	}
	return names
}

// String returns the stage chain joined with "|".
func (p *Pipeline) String() string {
	return strings.Join(p.Names(), "|")
}

// Run reads src to end of input, pushing every chunk through the stages,
// then flushes the stages and writes all output to dst.
//
// A read that returns data together with io.EOF is processed before the
// flush sequence starts. ctx is checked before every read; cancellation
// aborts the run without flushing.
func (p *Pipeline) Run(ctx context.Context, src io.Reader, dst io.Writer) (Stats, error) {
	if p.used {
		return Stats{}, ErrPipelineUsed
	}
	p.used = true

	buf := make([]byte, p.readSize)
	for {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			p.stats.ChunksRead++
			p.stats.BytesIn += int64(n)
			p.collector.AddChunkRead(n)
			if perr := p.pushAndWrite(0, buf[:n], dst); perr != nil {
				return p.stats, perr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return p.stats, &SourceError{Err: err}
		}
	}

	for i, s := range p.stages {
		res, err := s.Flush()
		if err != nil {
			return p.stats, p.stageError(i, PhaseFlush, err)
		}
		if res.NeedsMoreInput() {
			return p.stats, p.stageError(i, PhaseFlush, ErrFlushNeedsInput)
		}
		p.logger.Debug("stage flushed", map[string]any{
			"stage": stage.NameOf(s),
			"index": i,
			"bytes": len(res.Bytes()),
		})
		if err := p.pushAndWrite(i+1, res.Bytes(), dst); err != nil {
			return p.stats, err
		}
	}

	p.logger.Info("pipeline completed", map[string]any{
		"stages":      p.String(),
		"chunks_read": p.stats.ChunksRead,
		"bytes_in":    p.stats.BytesIn,
		"bytes_out":   p.stats.BytesOut,
	})
	return p.stats, nil
}

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// pushAndWrite runs data through stages[from:] and writes any output.
// Stages after from always see the data, even when it is empty.
func (p *Pipeline) pushAndWrite(from int, data []byte, dst io.Writer) error {
	out, ok, err := p.push(from, data)
	if err != nil || !ok {
		return err
	}
	return p.write(dst, out)
}

// push feeds data to stages[from:] in order. ok is false when a stage
// returned NeedMoreInput and nothing reached the end of the chain.
func (p *Pipeline) push(from int, data []byte) (out []byte, ok bool, err error) {
	for i := from; i < len(p.stages); i++ {
		res, err := p.stages[i].Process(data)
		if err != nil {
			return nil, false, p.stageError(i, PhaseProcess, err)
		}
		if res.NeedsMoreInput() {
			p.stats.NeedMoreInput++
			p.collector.IncNeedMoreInput()
			return nil, false, nil
		}
		data = res.Bytes()
	}
	return data, true, nil
}

func (p *Pipeline) write(dst io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := dst.Write(data)
	p.stats.BytesOut += int64(n)
	if err != nil {
		return &SinkError{Err: err}
	}
	if n < len(data) {
		return &SinkError{Err: io.ErrShortWrite}
	}
	p.stats.Writes++
	return nil
}

func (p *Pipeline) stageError(i int, phase Phase, err error) error {
	p.collector.IncStageError()
	name := stage.NameOf(p.stages[i])
	p.logger.Debug("stage failed", map[string]any{
		"stage": name,
		"index": i,
		"phase": string(phase),
		"error": err.Error(),
	})
	return &StageError{Stage: name, Index: i, Phase: phase, Err: err}
}

// Run builds a pipeline from stages and runs it once.
func Run(ctx context.Context, src io.Reader, dst io.Writer, stages []stage.Stage, opts ...Option) (Stats, error) {
	p, err := New(stages, opts...)
	if err != nil {
		return Stats{}, err
	}
	return p.Run(ctx, src, dst)
}
