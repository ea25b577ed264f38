package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/slipway/pkg/ledger"
)

// FormatTable writes runs as a formatted table to the provided writer.
// Columns: ID (truncated), VERSION, TAG, STATUS, AGE, DURATION.
// Returns the number of runs formatted.
func FormatTable(w io.Writer, runs []*ledger.Run, project string) int {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for project '%s'\n", project)
		return 0
	}

	fmt.Fprintf(w, "Runs for project '%s':\n\n", project)

	fmt.Fprintf(w, "%-10s %-14s %-16s %-10s %-8s %s\n",
		"ID", "VERSION", "TAG", "STATUS", "AGE", "DURATION")
	fmt.Fprintf(w, "%-10s %-14s %-16s %-10s %-8s %s\n",
		"----------", "--------------", "----------------", "----------", "--------", "--------")

	for _, r := range runs {
		fmt.Fprintf(w, "%-10s %-14s %-16s %-10s %-8s %s\n",
			formatID(r.ID),
			formatColumn(r.Version, 14),
			formatColumn(r.Tag, 16),
			string(r.Status),
			formatAge(r.StartedMs),
			formatDuration(r),
		)
	}

	countMsg := "run"
	if len(runs) != 1 {
		countMsg = "runs"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(runs), countMsg)

	return len(runs)
}

// FormatJSONL writes runs as line-delimited JSON (JSONL) to the provided writer.
// This format is ideal for processing with tools like jq.
func FormatJSONL(w io.Writer, runs []*ledger.Run) error {
	for _, run := range runs {
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatRunDetail writes a single run with its steps and artifacts as
// pretty-printed JSON.
func FormatRunDetail(w io.Writer, run *ledger.Run, steps []*ledger.StepResult, artifacts []*ledger.Artifact) error {
	detail := struct {
		Run       *ledger.Run          `json:"run"`
		Steps     []*ledger.StepResult `json:"steps"`
		Artifacts []*ledger.Artifact   `json:"artifacts"`
	}{run, steps, artifacts}

	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run detail to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// formatID truncates run ID to first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatColumn truncates a value to fit its column width.
func formatColumn(s string, width int) string {
	if len(s) > width {
		return s[:width-1] + "…"
	}
	return s
}

// formatAge renders how long ago the run started, compactly.
func formatAge(startedMs int64) string {
	age := time.Since(time.UnixMilli(startedMs))
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}

// formatDuration renders how long the run took, or "-" while in flight.
func formatDuration(r *ledger.Run) string {
	if r.FinishedMs == 0 {
		return "-"
	}
	d := time.UnixMilli(r.FinishedMs).Sub(time.UnixMilli(r.StartedMs))
	return d.Round(time.Second).String()
}
