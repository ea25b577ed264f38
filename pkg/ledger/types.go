package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Run represents one execution of the release pipeline.
// A run is created when the pipeline starts and finalized exactly once,
// to StatusSucceeded or StatusFailed.
type Run struct {
	ID         string    `json:"id"`                // UUID - unique identifier for this run
	Project    string    `json:"project"`           // Project name from slipway.yml
	Version    string    `json:"version"`           // Declared version resolved at run start
	Tag        string    `json:"tag"`               // Release tag derived from the version
	Commit     string    `json:"commit"`            // Git commit SHA the run built
	Status     RunStatus `json:"status"`            // Current lifecycle state
	StartedMs  int64     `json:"started_ms"`        // Unix timestamp in milliseconds
	FinishedMs int64     `json:"finished_ms"`       // Zero while the run is in flight
	Failure    string    `json:"failure,omitempty"` // Human-readable reason when status=failed
}

// RunStatus defines the lifecycle state of a run.
type RunStatus string

const (
	// StatusRunning indicates the pipeline is still executing
	StatusRunning RunStatus = "running"

	// StatusSucceeded indicates every stage completed
	StatusSucceeded RunStatus = "succeeded"

	// StatusFailed indicates a stage failed and the remainder was aborted
	StatusFailed RunStatus = "failed"
)

// Stage identifies which part of the pipeline produced a step result.
type Stage string

const (
	// StageBuild covers the configured build steps
	StageBuild Stage = "build"

	// StageCollect covers artifact collection and version verification
	StageCollect Stage = "collect"

	// StageRelease covers tag creation and the hosted release
	StageRelease Stage = "release"

	// StagePublish covers package index uploads
	StagePublish Stage = "publish"
)

// StepResult records the outcome of a single executed step or stage.
type StepResult struct {
	RunID      string `json:"run_id"`
	Index      int    `json:"index"` // Position in execution order, starting at 0
	Name       string `json:"name"`
	Stage      Stage  `json:"stage"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"` // Bounded tail of combined stdout/stderr
}

// Artifact records a distributable collected by a run.
type Artifact struct {
	RunID  string `json:"run_id"`
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Validate checks if the Run has valid field values.
func (r *Run) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	if r.Project == "" {
		return fmt.Errorf("run project cannot be empty")
	}

	if r.Version == "" {
		return fmt.Errorf("run version cannot be empty")
	}

	if err := r.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if r.StartedMs <= 0 {
		return fmt.Errorf("invalid started_ms: must be > 0, got %d", r.StartedMs)
	}

	if r.Status == StatusRunning && r.FinishedMs != 0 {
		return fmt.Errorf("running run cannot have finished_ms set")
	}

	if r.Status != StatusRunning && r.FinishedMs == 0 {
		return fmt.Errorf("finished run must have finished_ms set")
	}

	return nil
}

// Validate checks if the RunStatus is a valid enum value.
func (s RunStatus) Validate() error {
	switch s {
	case StatusRunning, StatusSucceeded, StatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown run status: %q", s)
	}
}

// Validate checks if the Stage is a valid enum value.
func (s Stage) Validate() error {
	switch s {
	case StageBuild, StageCollect, StageRelease, StagePublish:
		return nil
	default:
		return fmt.Errorf("unknown stage: %q", s)
	}
}

// Validate checks if the StepResult has valid field values.
func (sr *StepResult) Validate() error {
	if !isValidUUID(sr.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	if sr.Name == "" {
		return fmt.Errorf("step result name cannot be empty")
	}

	if sr.Index < 0 {
		return fmt.Errorf("invalid index: must be >= 0, got %d", sr.Index)
	}

	if err := sr.Stage.Validate(); err != nil {
		return fmt.Errorf("invalid stage: %w", err)
	}

	return nil
}

// Validate checks if the Artifact has valid field values.
func (a *Artifact) Validate() error {
	if !isValidUUID(a.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	if a.Name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}

	if a.SHA256 == "" {
		return fmt.Errorf("artifact sha256 cannot be empty")
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
