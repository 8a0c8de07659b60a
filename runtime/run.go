// Package runtime orchestrates a single conduit run.
//
// A run opens its source and sink, builds the stage chain, drives the
// pipeline through the configured write policy, and classifies the result.
// When storage is configured it persists a report record; when an adapter
// is configured it publishes a completion event. Neither side effect can
// change the run's outcome.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/conduit/adapter"
	"github.com/pithecene-io/conduit/codec"
	"github.com/pithecene-io/conduit/endpoint"
	"github.com/pithecene-io/conduit/iox"
	"github.com/pithecene-io/conduit/lode"
	"github.com/pithecene-io/conduit/log"
	"github.com/pithecene-io/conduit/metrics"
	"github.com/pithecene-io/conduit/pipeline"
	"github.com/pithecene-io/conduit/policy"
	"github.com/pithecene-io/conduit/types"
)

// publishTimeout bounds the completion publish after the run has ended.
const publishTimeout = 30 * time.Second

// RunConfig configures a single run.
type RunConfig struct {
	// RunMeta is the run identity. If nil, a fresh run ID is generated.
	RunMeta *types.RunMeta
	// Source and Sink are endpoint locations ("-", "str:...", "lode://...", paths).
	Source string
	Sink   string
	// Stages are applied in order.
	Stages []codec.Spec
	// Env carries cipher material and frame limits to stage factories.
	Env codec.Env
	// ReadSize is the source read size. Zero selects pipeline.DefaultReadSize.
	ReadSize int
	// Policy selects the sink write policy.
	Policy policy.Config
	// Storage configures the Lode store for lode:// endpoints and reports.
	// If nil, lode:// locations fail and no report is persisted.
	Storage *lode.Config
	// Adapter receives the completion event. May be nil.
	Adapter adapter.Adapter
	// Stdin and Stdout override the process streams for "-" locations.
	Stdin  io.Reader
	Stdout io.Writer
	// Logger overrides the default run logger.
	Logger *log.Logger
	// Collector is the metrics collector for this run.
	// If nil, one is created.
	Collector *metrics.Collector
	// ReportSink overrides the Lode report client (for testing).
	ReportSink lode.Sink
}

// RunResult represents the result of a run.
type RunResult struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Outcome is the run outcome.
	Outcome *types.RunOutcome
	// Err is the error that ended the run, nil on success.
	Err error
	// StartedAt and Duration time the run.
	StartedAt time.Time
	Duration  time.Duration
	// Stats are the pipeline counters.
	Stats pipeline.Stats
	// PolicyStats is the write policy statistics.
	PolicyStats policy.Stats
	// Metrics is the final collector snapshot, including report and
	// publish counters.
	Metrics metrics.Snapshot
	// Stages is the pipeline description ("upper|encrypt:chunk=8192").
	Stages string
	// PolicyName is the effective policy name.
	PolicyName string
}

// NewRunMeta returns run metadata with a random run ID.
func NewRunMeta(jobID string) *types.RunMeta {
	meta := &types.RunMeta{RunID: uuid.NewString()}
	if jobID != "" {
		meta.JobID = &jobID
	}
	return meta
}

// RunOrchestrator orchestrates a single run.
type RunOrchestrator struct {
	config    *RunConfig
	logger    *log.Logger
	collector *metrics.Collector
	objects   *lode.Objects
	reports   lode.Sink
	stages    string
	startTime time.Time
}

// NewRunOrchestrator validates the configuration and prepares storage.
// Configuration errors are returned here; everything that fails once the
// run has started is reported through RunResult.Outcome.
func NewRunOrchestrator(ctx context.Context, config *RunConfig) (*RunOrchestrator, error) {
	if config.RunMeta == nil {
		config.RunMeta = NewRunMeta("")
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.RunMeta)
	}

	stages := codec.FormatChain(config.Stages)

	policyName := config.Policy.Name
	if policyName == "" {
		policyName = policy.NameStrict
	}

	backend := ""
	if config.Storage != nil {
		backend = config.Storage.Backend
	}

	collector := config.Collector
	if collector == nil {
		jobID := ""
		if config.RunMeta.JobID != nil {
			jobID = *config.RunMeta.JobID
		}
		collector = metrics.NewCollector(policyName, stages, backend, config.RunMeta.RunID, jobID)
	}

	r := &RunOrchestrator{
		config:    config,
		logger:    logger,
		collector: collector,
		reports:   config.ReportSink,
		stages:    stages,
	}

	if config.Storage != nil {
		factory, err := lode.NewFactory(ctx, *config.Storage)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		r.objects = lode.NewObjects(factory, collector)
		if r.reports == nil {
			client, err := lode.NewReportClient(config.Storage.DatasetID(), factory)
			if err != nil {
				return nil, fmt.Errorf("storage: %w", err)
			}
			r.reports = client
		}
	}
	if r.reports != nil {
		r.reports = lode.NewInstrumentedSink(r.reports, collector)
	}

	return r, nil
}

// Run is a convenience wrapper: NewRunOrchestrator followed by Execute.
func Run(ctx context.Context, config *RunConfig) (*RunResult, error) {
	r, err := NewRunOrchestrator(ctx, config)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx)
}

// Execute executes the run end-to-end.
//
// Execution flow:
//  1. Build stages (invalid specs are configuration errors)
//  2. Open source and sink
//  3. Run the pipeline through the write policy
//  4. Close the policy, then the sink
//  5. Classify the outcome, persist the report, publish the event
func (r *RunOrchestrator) Execute(ctx context.Context) (*RunResult, error) {
	env := r.config.Env
	env.Collector = r.collector
	stages, err := codec.Default().BuildAll(env, r.config.Stages)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(r.logger),
		pipeline.WithCollector(r.collector),
	}
	if r.config.ReadSize != 0 {
		opts = append(opts, pipeline.WithReadSize(r.config.ReadSize))
	}
	p, err := pipeline.New(stages, opts...)
	if err != nil {
		return nil, err
	}

	r.startTime = time.Now()
	r.collector.IncRunStarted()
	r.logger.Info("starting run", map[string]any{
		"source": r.config.Source,
		"sink":   r.config.Sink,
		"stages": r.stages,
		"policy": r.policyName(),
	})

	epOpts := endpoint.Options{
		Stdin:   r.config.Stdin,
		Stdout:  r.config.Stdout,
		Objects: r.objects,
	}

	src, err := endpoint.OpenSource(ctx, r.config.Source, epOpts)
	if err != nil {
		return r.finish(ctx, fmt.Errorf("open source: %w", err), pipeline.Stats{}, policy.Stats{}, nil), nil
	}
	defer iox.DiscardClose(src)

	sink, err := endpoint.OpenSink(ctx, r.config.Sink, epOpts)
	if err != nil {
		return r.finish(ctx, fmt.Errorf("open sink: %w", err), pipeline.Stats{}, policy.Stats{}, nil), nil
	}

	digest := iox.NewDigestWriter(sink)
	pol, err := policy.New(r.config.Policy, digest)
	if err != nil {
		iox.DiscardErr(func() error { return endpoint.Abort(sink, err) })
		return nil, err
	}

	stats, runErr := p.Run(ctx, src, pol)

	// Always close the policy so buffered output reaches the sink, even on
	// failure; partial output is never rolled back.
	closeErr := pol.Close()
	if runErr == nil && closeErr != nil {
		runErr = &pipeline.SinkError{Err: closeErr}
	} else if closeErr != nil {
		r.logger.Warn("policy close failed (best effort)", map[string]any{
			"error": closeErr.Error(),
		})
	}

	if runErr != nil {
		if abortErr := endpoint.Abort(sink, runErr); abortErr != nil {
			r.logger.Warn("sink abort failed", map[string]any{
				"error": abortErr.Error(),
			})
		}
	} else if err := sink.Close(); err != nil {
		runErr = &pipeline.SinkError{Err: err}
	}

	return r.finish(ctx, runErr, stats, pol.Stats(), digest), nil
}

func (r *RunOrchestrator) policyName() string {
	if r.config.Policy.Name == "" {
		return policy.NameStrict
	}
	return r.config.Policy.Name
}

// finish classifies the outcome, records metrics and runs the side effects.
func (r *RunOrchestrator) finish(ctx context.Context, runErr error, stats pipeline.Stats, ps policy.Stats, digest *iox.DigestWriter) *RunResult {
	duration := time.Since(r.startTime)
	completedAt := r.startTime.Add(duration)
	outcome := ClassifyOutcome(runErr)

	if outcome.Status.IsSuccess() {
		r.collector.IncRunCompleted()
		r.logger.Info("run completed", map[string]any{
			"outcome":   outcome.Status,
			"bytes_in":  stats.BytesIn,
			"bytes_out": ps.BytesWritten,
			"duration":  duration.String(),
		})
	} else {
		r.collector.IncRunFailed()
		r.logger.Error("run failed", map[string]any{
			"outcome":  outcome.Status,
			"error":    outcome.Message,
			"stage":    outcome.Stage,
			"duration": duration.String(),
		})
	}

	r.collector.AbsorbSinkStats(ps.SinkWrites, ps.Errors, ps.FlushCount, ps.BytesWritten)
	if digest != nil {
		r.collector.SetOutputDigest(digest.Sum())
	}

	result := &RunResult{
		RunMeta:     r.config.RunMeta,
		Outcome:     outcome,
		Err:         runErr,
		StartedAt:   r.startTime,
		Duration:    duration,
		Stats:       stats,
		PolicyStats: ps,
		Stages:      r.stages,
		PolicyName:  r.policyName(),
	}

	// Side effects use a context detached from run cancellation.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if r.reports != nil {
		record := lode.NewReportRecord(*r.config.RunMeta, *outcome, r.collector.Snapshot(), r.startTime, completedAt)
		if err := r.reports.WriteReport(sideCtx, record); err != nil {
			r.logger.Warn("report persist failed", map[string]any{
				"error": err.Error(),
			})
		}
		iox.DiscardErr(r.reports.Close)
	}

	if r.config.Adapter != nil {
		event := r.buildEvent(outcome, completedAt, r.collector.Snapshot())
		if err := r.config.Adapter.Publish(sideCtx, event); err != nil {
			r.collector.IncAdapterPublishFailure()
			r.logger.Warn("adapter publish failed", map[string]any{
				"error": err.Error(),
			})
		} else {
			r.collector.IncAdapterPublishSuccess()
		}
	}

	result.Metrics = r.collector.Snapshot()
	return result
}

// buildEvent composes the completion event for the adapter.
func (r *RunOrchestrator) buildEvent(outcome *types.RunOutcome, completedAt time.Time, snap metrics.Snapshot) *adapter.RunCompletedEvent {
	event := &adapter.RunCompletedEvent{
		ContractVersion: adapter.ContractVersion,
		EventType:       adapter.EventTypeRunCompleted,
		RunID:           r.config.RunMeta.RunID,
		Day:             lode.DeriveDay(r.startTime),
		Outcome:         string(outcome.Status),
		Message:         outcome.Message,
		Source:          r.config.Source,
		Sink:            r.config.Sink,
		Stages:          r.stages,
		Timestamp:       completedAt.UTC().Format(time.RFC3339),
		DurationMs:      completedAt.Sub(r.startTime).Milliseconds(),
		BytesIn:         snap.BytesIn,
		BytesOut:        snap.BytesOut,
		OutputDigest:    snap.OutputDigest,
	}
	if r.config.RunMeta.JobID != nil {
		event.JobID = *r.config.RunMeta.JobID
	}
	if loc, err := endpoint.Parse(r.config.Sink); err == nil && loc.Kind == endpoint.KindLode {
		event.StoragePath = loc.Value
	}
	return event
}

// IsConfigError reports whether err came from configuration rather than
// from running the pipeline.
func IsConfigError(err error) bool {
	return errors.Is(err, codec.ErrUnknownStage) ||
		errors.Is(err, codec.ErrInvalidSpec) ||
		errors.Is(err, codec.ErrMissingCipher) ||
		errors.Is(err, policy.ErrUnknownPolicy) ||
		errors.Is(err, policy.ErrInvalidConfig) ||
		errors.Is(err, pipeline.ErrInvalidReadSize) ||
		errors.Is(err, lode.ErrUnknownBackend) ||
		errors.Is(err, types.ErrMissingRunID)
}
