package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harborworks/lighter/metrics"
	"github.com/harborworks/lighter/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID        string             `json:"run_id"`
	Project      string             `json:"project"`
	Status       types.DeployStatus `json:"status"`
	DeploymentID string             `json:"deployment_id,omitempty"`
	URL          string             `json:"url,omitempty"`
	Error        string             `json:"error,omitempty"`
	ExitCode     int                `json:"exit_code"`
	DurationMs   int64              `json:"duration_ms"`

	Stats        types.Stats      `json:"stats"`
	UploadedKeys int              `json:"uploaded_keys"`
	ReusedKeys   int              `json:"reused_keys"`
	StageMs      map[string]int64 `json:"stage_ms"`

	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

// BuildRunReport composes a RunReport from a run result, the per-stage
// timings, and a metrics snapshot. runErr, when non-nil, marks the report
// failed and carries the message. The exitCode is the process exit code
// that will be returned to the caller.
func BuildRunReport(result *types.Result, timings map[Stage]time.Duration, snap metrics.Snapshot, runErr error, exitCode int) *RunReport {
	report := &RunReport{
		RunID:        result.RunID,
		Project:      result.Project,
		Status:       result.Status,
		DeploymentID: result.DeploymentID,
		URL:          result.URL,
		ExitCode:     exitCode,
		DurationMs:   result.DurationMs,
		Stats:        result.Stats,
		UploadedKeys: result.UploadedKeys,
		ReusedKeys:   result.ReusedKeys,
		StageMs:      make(map[string]int64, len(timings)),
		Metrics:      &snap,
	}

	for stage, d := range timings {
		report.StageMs[string(stage)] = d.Milliseconds()
	}

	if runErr != nil {
		report.Status = types.StatusFailure
		report.Error = runErr.Error()
	}

	return report
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr so stdout stays clean for rendered
// results.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stderr.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes report JSON to any writer (for testing).
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
