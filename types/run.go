// Package types defines core domain types shared across conduit packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import "errors"

// ErrMissingRunID is returned by RunMeta.Validate for an empty run ID.
var ErrMissingRunID = errors.New("run_id is required")

// RunMeta identifies a single pipeline run.
type RunMeta struct {
	// RunID is the unique run identifier.
	RunID string `json:"run_id" msgpack:"run_id"`
	// JobID groups related runs (optional).
	JobID *string `json:"job_id,omitempty" msgpack:"job_id,omitempty"`
}

// Validate checks that the run identity is usable.
func (m *RunMeta) Validate() error {
	if m == nil || m.RunID == "" {
		return ErrMissingRunID
	}
	return nil
}

// OutcomeStatus is the terminal status of a run.
type OutcomeStatus string

// Outcome statuses.
const (
	// OutcomeSuccess indicates every byte reached the sink and all stages flushed.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePipelineError indicates a stage, codec, source or sink failure.
	OutcomePipelineError OutcomeStatus = "pipeline_error"
	// OutcomeFramingError indicates a truncated or oversized frame.
	OutcomeFramingError OutcomeStatus = "framing_error"
	// OutcomeStorageError indicates the object store rejected a read or write.
	OutcomeStorageError OutcomeStatus = "storage_error"
)

// IsSuccess reports whether the status is OutcomeSuccess.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeSuccess
}

// RunOutcome describes how a run ended.
type RunOutcome struct {
	Status  OutcomeStatus `json:"status" msgpack:"status"`
	Message string        `json:"message" msgpack:"message"`
	// Stage is the name of the failing stage, if any.
	Stage string `json:"stage,omitempty" msgpack:"stage,omitempty"`
}
