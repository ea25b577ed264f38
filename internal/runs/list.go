// Package runs reads release run history back out of the ledger for the
// `slipway runs` command.
package runs

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/slipway/pkg/ledger"
)

// OutputFormat specifies how to format the run list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete runs as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the runs command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64            // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64            // Unix timestamp in milliseconds, 0 = no filter
	Status           ledger.RunStatus // Empty = no filter
}

// matchesFilter returns true if the run matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(run *ledger.Run) bool {
	if fc.SinceTimestampMs > 0 && run.StartedMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && run.StartedMs > fc.UntilTimestampMs {
		return false
	}
	if fc.Status != "" && run.Status != fc.Status {
		return false
	}
	return true
}

// ListRuns retrieves runs for a project and writes them to the provided writer.
// The ledger's ZSET index already orders runs newest-first.
func ListRuns(ctx context.Context, client *ledger.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	runs, err := client.ListRuns(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if filters != nil {
		filtered := runs[:0]
		for _, run := range runs {
			if filters.matchesFilter(run) {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, runs, client.Project())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, runs); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// ShowRun writes one run with its step results and artifacts as pretty JSON.
func ShowRun(ctx context.Context, client *ledger.Client, runID string, w io.Writer) error {
	run, err := client.GetRun(ctx, runID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return fmt.Errorf("run not found: %s", runID)
		}
		return err
	}

	steps, err := client.GetStepResults(ctx, runID)
	if err != nil {
		return err
	}

	artifacts, err := client.GetArtifacts(ctx, runID)
	if err != nil {
		return err
	}

	return FormatRunDetail(w, run, steps, artifacts)
}
