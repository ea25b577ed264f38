package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by project name so
// multiple projects can share one Redis server.
//
// Key pattern: slipway:{project}:{entity}
// Channel pattern: slipway:{project}:run_events

// RunKey returns the Redis key for a run hash.
// Pattern: slipway:{project}:run:{run_id}
func RunKey(project, runID string) string {
	return fmt.Sprintf("slipway:%s:run:%s", project, runID)
}

// StepsKey returns the Redis key for a run's step result list.
// Pattern: slipway:{project}:run:{run_id}:steps
func StepsKey(project, runID string) string {
	return fmt.Sprintf("slipway:%s:run:%s:steps", project, runID)
}

// ArtifactsKey returns the Redis key for a run's artifact list.
// Pattern: slipway:{project}:run:{run_id}:artifacts
func ArtifactsKey(project, runID string) string {
	return fmt.Sprintf("slipway:%s:run:%s:artifacts", project, runID)
}

// RunsIndexKey returns the Redis key for the project's run index ZSET,
// scored by run start time in milliseconds.
// Pattern: slipway:{project}:runs
func RunsIndexKey(project string) string {
	return fmt.Sprintf("slipway:%s:runs", project)
}

// RunEventsChannel returns the Pub/Sub channel name for run lifecycle events.
// Run creation and finalization publish the full run JSON here.
// Pattern: slipway:{project}:run_events
func RunEventsChannel(project string) string {
	return fmt.Sprintf("slipway:%s:run_events", project)
}
