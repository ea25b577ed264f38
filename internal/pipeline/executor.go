package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/docker"
)

const (
	// maxOutputSize is the maximum number of bytes retained from a step's
	// combined stdout/stderr (10MB)
	maxOutputSize = 10 * 1024 * 1024
)

// Outcome is the result of executing one step.
type Outcome struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Executor runs a single pipeline step to completion.
// A non-zero exit code is reported through Outcome, not through the error:
// the error return is for failures to execute at all (missing binary,
// daemon unreachable, timeout).
type Executor interface {
	Execute(ctx context.Context, step config.Step, env []string) (*Outcome, error)
}

// HostExecutor runs steps directly on the host with os/exec.
type HostExecutor struct {
	// Dir is the workspace root; step workdirs are resolved against it.
	Dir string
}

// Execute runs the step as a subprocess with a per-step timeout and capped
// output. The subprocess sees exactly the environment it is given.
func (h *HostExecutor) Execute(ctx context.Context, step config.Step, env []string) (*Outcome, error) {
	timeout := step.TimeoutDuration()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, step.Run[0], step.Run[1:]...)
	cmd.Dir = filepath.Join(h.Dir, step.Workdir)
	cmd.Env = env

	output := &cappedBuffer{max: maxOutputSize}
	cmd.Stdout = output
	cmd.Stderr = output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("step '%s' timed out after %s", step.Name, timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The command ran and failed; that's an outcome, not an executor error
			return &Outcome{
				ExitCode: exitErr.ExitCode(),
				Output:   output.String(),
				Duration: duration,
			}, nil
		}
		return nil, fmt.Errorf("failed to execute step '%s': %w", step.Name, err)
	}

	return &Outcome{
		ExitCode: 0,
		Output:   output.String(),
		Duration: duration,
	}, nil
}

// ContainerExecutor runs steps inside containers from the configured
// runtime image (see internal/docker).
type ContainerExecutor struct {
	Runtime *docker.Runtime
}

// Execute runs the step in a fresh container from the runtime image.
func (c *ContainerExecutor) Execute(ctx context.Context, step config.Step, env []string) (*Outcome, error) {
	start := time.Now()
	exitCode, output, err := c.Runtime.RunStep(ctx, step.Name, step.Run, env, step.Workdir, step.TimeoutDuration())
	duration := time.Since(start)

	if err != nil {
		return nil, err
	}

	return &Outcome{
		ExitCode: exitCode,
		Output:   output,
		Duration: duration,
	}, nil
}

// cappedBuffer accepts unlimited writes but retains only the first max bytes.
// Writes never error so subprocess output is never a failure cause on its own.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.buf.Len() < b.max {
		remain := b.max - b.buf.Len()
		if len(p) > remain {
			p = p[:remain]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *cappedBuffer) String() string {
	return strings.TrimRight(b.buf.String(), "\n")
}
