package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client provides project-scoped Redis operations for the run ledger.
// All keys and channels are automatically namespaced with the project name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	project string
}

// NewClient creates a new ledger client for the specified project.
// The client automatically namespaces all keys and channels with the project name.
//
// Returns an error if project is empty.
func NewClient(redisOpts *redis.Options, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		project: project,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Project returns the project name this client is scoped to.
func (c *Client) Project() string {
	return c.project
}

// CreateRun writes a new run to Redis, indexes it by start time, and
// publishes a run event. Validates the run before writing.
func (c *Client) CreateRun(ctx context.Context, run *Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	key := RunKey(c.project, run.ID)
	if err := c.rdb.HSet(ctx, key, RunToHash(run)).Err(); err != nil {
		return fmt.Errorf("failed to write run to Redis: %w", err)
	}

	// Index by start time for chronological listing
	z := redis.Z{Score: float64(run.StartedMs), Member: run.ID}
	if err := c.rdb.ZAdd(ctx, RunsIndexKey(c.project), z).Err(); err != nil {
		return fmt.Errorf("failed to index run: %w", err)
	}

	return c.publishRunEvent(ctx, run)
}

// UpdateRun replaces an existing run with new data (full HSET replacement)
// and publishes a run event. Used by the engine to finalize a run's status.
func (c *Client) UpdateRun(ctx context.Context, run *Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	key := RunKey(c.project, run.ID)
	if err := c.rdb.HSet(ctx, key, RunToHash(run)).Err(); err != nil {
		return fmt.Errorf("failed to update run in Redis: %w", err)
	}

	return c.publishRunEvent(ctx, run)
}

// GetRun retrieves a run by ID.
// Returns (nil, redis.Nil) if the run doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	key := RunKey(c.project, runID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	run, err := HashToRun(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}

	return run, nil
}

// ListRuns returns runs ordered newest-first, up to limit (0 = all).
// Runs whose records have gone missing from under the index are skipped.
func (c *Client) ListRuns(ctx context.Context, limit int64) ([]*Run, error) {
	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}

	ids, err := c.rdb.ZRevRange(ctx, RunsIndexKey(c.project), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}

	runs := make([]*Run, 0, len(ids))
	for _, id := range ids {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// AppendStepResult appends a step result to the run's ordered result list.
// Validates the result before writing.
func (c *Client) AppendStepResult(ctx context.Context, result *StepResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid step result: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal step result: %w", err)
	}

	key := StepsKey(c.project, result.RunID)
	if err := c.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append step result: %w", err)
	}

	return nil
}

// GetStepResults retrieves all step results for a run in execution order.
// Returns an empty slice if the run has no recorded steps (not an error).
func (c *Client) GetStepResults(ctx context.Context, runID string) ([]*StepResult, error) {
	key := StepsKey(c.project, runID)

	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read step results: %w", err)
	}

	results := make([]*StepResult, 0, len(raw))
	for _, item := range raw {
		var result StepResult
		if err := json.Unmarshal([]byte(item), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step result: %w", err)
		}
		results = append(results, &result)
	}

	return results, nil
}

// AddArtifact records a collected artifact against a run.
// Validates the artifact before writing.
func (c *Client) AddArtifact(ctx context.Context, art *Artifact) error {
	if err := art.Validate(); err != nil {
		return fmt.Errorf("invalid artifact: %w", err)
	}

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	key := ArtifactsKey(c.project, art.RunID)
	if err := c.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}

	return nil
}

// GetArtifacts retrieves all artifacts recorded for a run.
// Returns an empty slice if the run recorded no artifacts (not an error).
func (c *Client) GetArtifacts(ctx context.Context, runID string) ([]*Artifact, error) {
	key := ArtifactsKey(c.project, runID)

	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifacts: %w", err)
	}

	artifacts := make([]*Artifact, 0, len(raw))
	for _, item := range raw {
		var art Artifact
		if err := json.Unmarshal([]byte(item), &art); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
		}
		artifacts = append(artifacts, &art)
	}

	return artifacts, nil
}

// publishRunEvent publishes the full run JSON to the project's event channel.
// Listeners (e.g. dashboards tailing the channel) get create and finalize
// events; the ledger itself never depends on them being consumed.
func (c *Client) publishRunEvent(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run for event: %w", err)
	}

	channel := RunEventsChannel(c.project)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	return nil
}

// IsNotFound reports whether an error from this package means the requested
// record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
