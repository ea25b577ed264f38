package docker

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

const (
	// workspaceMount is where the project workspace appears inside step containers
	workspaceMount = "/workspace"

	// maxLogBytes caps how much container output is retained per step (10MB)
	maxLogBytes = 10 * 1024 * 1024
)

// Runtime provisions a language runtime image and runs pipeline steps in it.
// Each step gets a fresh container from the same image with the workspace
// bind-mounted read-write, so steps share state only through the workspace,
// exactly as they would on a CI runner.
type Runtime struct {
	cli       *client.Client
	image     string
	workspace string
	project   string
	runID     string
}

// NewRuntime creates a runtime for the given image, pulling it if absent.
func NewRuntime(ctx context.Context, cli *client.Client, image, workspace, project, runID string) (*Runtime, error) {
	rt := &Runtime{
		cli:       cli,
		image:     image,
		workspace: workspace,
		project:   project,
		runID:     runID,
	}

	if err := rt.ensureImage(ctx); err != nil {
		return nil, err
	}

	return rt, nil
}

// ensureImage pulls the runtime image unless it is already present locally.
func (r *Runtime) ensureImage(ctx context.Context) error {
	filter := filters.NewArgs()
	filter.Add("reference", r.image)

	images, err := r.cli.ImageList(ctx, types.ImageListOptions{Filters: filter})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	if len(images) > 0 {
		return nil
	}

	reader, err := r.cli.ImagePull(ctx, r.image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull runtime image %s: %w", r.image, err)
	}
	defer reader.Close()

	// Drain the pull progress stream; the pull completes when it closes
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull runtime image %s: %w", r.image, err)
	}

	return nil
}

// RunStep executes one command in a fresh container from the runtime image.
// Returns the container exit code and its combined output (capped at 10MB).
// A non-zero exit code is not an error here; the pipeline engine decides
// what a non-zero exit means.
func (r *Runtime) RunStep(ctx context.Context, stepName string, argv []string, env []string, workdir string, timeout time.Duration) (int, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	containerName := StepContainerName(r.project, r.runID, stepName)

	containerConfig := &container.Config{
		Image:      r.image,
		Cmd:        argv,
		Env:        env,
		WorkingDir: path.Join(workspaceMount, workdir),
		Labels:     BuildLabels(r.project, r.runID, r.workspace, stepName),
		// Tty gives a single unmuxed output stream
		Tty: true,
	}

	hostConfig := &container.HostConfig{
		Binds: []string{fmt.Sprintf("%s:%s", r.workspace, workspaceMount)},
	}

	resp, err := r.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return -1, "", fmt.Errorf("failed to create step container: %w", err)
	}

	// Always remove the container, even on failure paths
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = r.cli.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return -1, "", fmt.Errorf("failed to start step container: %w", err)
	}

	// Wait for the container to exit
	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)

	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			return -1, r.containerLogs(resp.ID), fmt.Errorf("failed waiting for step container: %w", err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		return -1, r.containerLogs(resp.ID), fmt.Errorf("step '%s' timed out after %s", stepName, timeout)
	}

	return exitCode, r.containerLogs(resp.ID), nil
}

// containerLogs retrieves a container's combined output, capped at maxLogBytes.
// Uses a background context so logs are still retrievable after a timeout.
func (r *Runtime) containerLogs(containerID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reader, err := r.cli.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return fmt.Sprintf("(failed to retrieve logs: %v)", err)
	}
	defer reader.Close()

	logs, err := io.ReadAll(io.LimitReader(reader, maxLogBytes))
	if err != nil {
		return fmt.Sprintf("(failed to read logs: %v)", err)
	}

	return strings.TrimRight(string(logs), "\n")
}
