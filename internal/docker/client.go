package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// NewClient creates a Docker client and validates daemon is accessible.
// Returns an error if the Docker daemon is not running or not accessible.
// Only needed when slipway.yml configures a container runtime; host-executed
// pipelines never touch Docker.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Validate daemon is accessible
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

The configured runtime image needs Docker. Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker

Or remove the runtime section from slipway.yml to run steps on the host.`, err)
	}

	return cli, nil
}
