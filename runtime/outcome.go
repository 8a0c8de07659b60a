package runtime

import (
	"errors"

	"github.com/pithecene-io/conduit/frame"
	"github.com/pithecene-io/conduit/lode"
	"github.com/pithecene-io/conduit/pipeline"
	"github.com/pithecene-io/conduit/types"
)

// Process exit codes.
const (
	ExitCodeSuccess       = 0 // run completed
	ExitCodePipelineError = 1 // stage, codec, source, sink or storage failure
	ExitCodeConfigError   = 2 // invalid arguments or configuration
	ExitCodeFramingError  = 3 // truncated or oversized frame
)

// ClassifyOutcome maps the error that ended a run to its outcome.
//
// Classification order matters: a truncated frame surfaced by a decrypt
// stage reading from a lode:// source is a framing error, not a storage
// error. Framing is checked first, then storage, and everything else is a
// pipeline error.
func ClassifyOutcome(err error) *types.RunOutcome {
	if err == nil {
		return &types.RunOutcome{
			Status:  types.OutcomeSuccess,
			Message: "run completed successfully",
		}
	}

	outcome := &types.RunOutcome{
		Status:  types.OutcomePipelineError,
		Message: err.Error(),
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		outcome.Stage = stageErr.Stage
	}

	switch {
	case frame.IsFatalFrameError(err):
		outcome.Status = types.OutcomeFramingError
	case lode.IsStorageError(err):
		outcome.Status = types.OutcomeStorageError
	}
	return outcome
}

// ExitCode maps an outcome status to the process exit code.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeFramingError:
		return ExitCodeFramingError
	default:
		return ExitCodePipelineError
	}
}
