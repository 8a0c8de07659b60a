package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/conduit/metrics"
	"github.com/pithecene-io/conduit/types"
)

// Report formats.
const (
	ReportFormatJSON    = "json"
	ReportFormatMsgpack = "msgpack"
)

// RunReport is the structured report written by --report.
type RunReport struct {
	RunID      string              `json:"run_id" msgpack:"run_id"`
	JobID      string              `json:"job_id,omitempty" msgpack:"job_id,omitempty"`
	Outcome    types.OutcomeStatus `json:"outcome" msgpack:"outcome"`
	Message    string              `json:"message" msgpack:"message"`
	Stage      string              `json:"stage,omitempty" msgpack:"stage,omitempty"`
	ExitCode   int                 `json:"exit_code" msgpack:"exit_code"`
	StartedAt  string              `json:"started_at" msgpack:"started_at"`
	DurationMs int64               `json:"duration_ms" msgpack:"duration_ms"`
	Stages     string              `json:"stages" msgpack:"stages"`

	Policy  *ReportPolicy     `json:"policy" msgpack:"policy"`
	Metrics *metrics.Snapshot `json:"metrics" msgpack:"metrics"`
}

// ReportPolicy holds write policy stats in the report.
type ReportPolicy struct {
	Name          string `json:"name" msgpack:"name"`
	Writes        int64  `json:"writes" msgpack:"writes"`
	BytesReceived int64  `json:"bytes_received" msgpack:"bytes_received"`
	SinkWrites    int64  `json:"sink_writes" msgpack:"sink_writes"`
	BytesWritten  int64  `json:"bytes_written" msgpack:"bytes_written"`
	Flushes       int64  `json:"flushes" msgpack:"flushes"`
	Errors        int64  `json:"errors" msgpack:"errors"`
}

// BuildRunReport composes a RunReport from a RunResult.
// The exitCode is the process exit code that will be returned to the caller.
func BuildRunReport(result *RunResult, exitCode int) *RunReport {
	snap := result.Metrics
	ps := result.PolicyStats
	report := &RunReport{
		RunID:      result.RunMeta.RunID,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		Stage:      result.Outcome.Stage,
		ExitCode:   exitCode,
		StartedAt:  result.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		DurationMs: result.Duration.Milliseconds(),
		Stages:     result.Stages,
		Policy: &ReportPolicy{
			Name:          result.PolicyName,
			Writes:        ps.Writes,
			BytesReceived: ps.BytesReceived,
			SinkWrites:    ps.SinkWrites,
			BytesWritten:  ps.BytesWritten,
			Flushes:       ps.FlushCount,
			Errors:        ps.Errors,
		},
		Metrics: &snap,
	}

	if result.RunMeta.JobID != nil {
		report.JobID = *result.RunMeta.JobID
	}

	return report
}

// WriteRunReport writes the report to the specified path in the given
// format (json or msgpack). If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path, format string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr, format); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := encodeRunReport(report, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes the encoded report to any writer.
func writeRunReportTo(report *RunReport, w io.Writer, format string) error {
	data, err := encodeRunReport(report, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func encodeRunReport(report *RunReport, format string) ([]byte, error) {
	switch format {
	case "", ReportFormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return append(data, '\n'), nil
	case ReportFormatMsgpack:
		data, err := msgpack.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
