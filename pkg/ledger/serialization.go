package ledger

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Run records are stored as flat Redis hashes so individual fields stay
// queryable. Step results and artifacts are append-only and read back whole,
// so they are stored as lists of JSON documents instead (see client.go).

// RunToHash converts a Run struct to a Redis hash format.
func RunToHash(r *Run) map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"project":     r.Project,
		"version":     r.Version,
		"tag":         r.Tag,
		"commit":      r.Commit,
		"status":      string(r.Status),
		"started_ms":  r.StartedMs,
		"finished_ms": r.FinishedMs,
		"failure":     r.Failure,
	}
}

// HashToRun converts a Redis hash to a Run struct.
func HashToRun(hash map[string]string) (*Run, error) {
	startedMs, err := strconv.ParseInt(hash["started_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid started_ms field: %w", err)
	}

	// finished_ms is zero for in-flight runs
	finishedMs, _ := strconv.ParseInt(hash["finished_ms"], 10, 64)

	run := &Run{
		ID:         hash["id"],
		Project:    hash["project"],
		Version:    hash["version"],
		Tag:        hash["tag"],
		Commit:     hash["commit"],
		Status:     RunStatus(hash["status"]),
		StartedMs:  startedMs,
		FinishedMs: finishedMs,
		Failure:    hash["failure"],
	}

	return run, nil
}
