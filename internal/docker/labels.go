package docker

import "fmt"

// Label keys used for slipway containers. Labels make leftover step
// containers attributable when a run is interrupted before cleanup.
const (
	LabelProject       = "slipway.project"
	LabelRunID         = "slipway.run_id"
	LabelStep          = "slipway.step"
	LabelWorkspacePath = "slipway.workspace.path"
)

// BuildLabels creates the standard label set for slipway step containers.
func BuildLabels(project, runID, workspacePath, step string) map[string]string {
	labels := map[string]string{
		LabelProject:       project,
		LabelRunID:         runID,
		LabelWorkspacePath: workspacePath,
	}

	if step != "" {
		labels[LabelStep] = step
	}

	return labels
}

// StepContainerName returns the container name for a pipeline step.
// The run ID prefix keeps concurrent runs of the same project from colliding.
func StepContainerName(project, runID, step string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("slipway-%s-%s-%s", project, short, step)
}
