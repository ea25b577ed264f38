package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a miniredis-backed client for unit tests.
func setupTestClient(t *testing.T) *Client {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNewClient_EmptyProject(t *testing.T) {
	_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project name cannot be empty")
}

func TestCreateAndGetRun(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	run := validRun()
	require.NoError(t, client.CreateRun(ctx, run))

	got, err := client.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Project, got.Project)
	assert.Equal(t, run.Version, got.Version)
	assert.Equal(t, run.Tag, got.Tag)
	assert.Equal(t, run.Commit, got.Commit)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, run.StartedMs, got.StartedMs)
}

func TestCreateRun_InvalidRun(t *testing.T) {
	client := setupTestClient(t)

	run := validRun()
	run.ID = "not-a-uuid"

	err := client.CreateRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run")
}

func TestGetRun_NotFound(t *testing.T) {
	client := setupTestClient(t)

	_, err := client.GetRun(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdateRun_Finalize(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	run := validRun()
	require.NoError(t, client.CreateRun(ctx, run))

	run.Status = StatusSucceeded
	run.FinishedMs = run.StartedMs + 3000
	require.NoError(t, client.UpdateRun(ctx, run))

	got, err := client.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, run.FinishedMs, got.FinishedMs)
}

func TestListRuns(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	base := time.Now().UnixMilli()
	var ids []string
	for i := 0; i < 3; i++ {
		run := validRun()
		run.StartedMs = base + int64(i*1000)
		require.NoError(t, client.CreateRun(ctx, run))
		ids = append(ids, run.ID)
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := client.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, ids[2], runs[0].ID)
		assert.Equal(t, ids[1], runs[1].ID)
		assert.Equal(t, ids[0], runs[2].ID)
	})

	t.Run("limit applies", func(t *testing.T) {
		runs, err := client.ListRuns(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, ids[2], runs[0].ID)
	})

	t.Run("empty project", func(t *testing.T) {
		other := setupTestClient(t)
		runs, err := other.ListRuns(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestStepResults(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	runID := uuid.New().String()
	for i, name := range []string{"install", "build"} {
		result := &StepResult{
			RunID:      runID,
			Index:      i,
			Name:       name,
			Stage:      StageBuild,
			ExitCode:   0,
			DurationMs: int64(100 * (i + 1)),
		}
		require.NoError(t, client.AppendStepResult(ctx, result))
	}

	results, err := client.GetStepResults(ctx, runID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Execution order preserved
	assert.Equal(t, "install", results[0].Name)
	assert.Equal(t, "build", results[1].Name)
	assert.Equal(t, 1, results[1].Index)
}

func TestGetStepResults_NoSteps(t *testing.T) {
	client := setupTestClient(t)

	results, err := client.GetStepResults(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestArtifacts(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	runID := uuid.New().String()
	art := &Artifact{
		RunID:  runID,
		Name:   "my_package-1.2.3.tar.gz",
		SHA256: "deadbeef",
		Size:   2048,
	}
	require.NoError(t, client.AddArtifact(ctx, art))

	got, err := client.GetArtifacts(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "my_package-1.2.3.tar.gz", got[0].Name)
	assert.Equal(t, int64(2048), got[0].Size)
}

func TestRunEvents_PublishedOnCreateAndUpdate(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()

	pubsub := sub.Subscribe(ctx, RunEventsChannel("test-project"))
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	run := validRun()
	require.NoError(t, client.CreateRun(ctx, run))

	select {
	case msg := <-pubsub.Channel():
		assert.Contains(t, msg.Payload, run.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no run event received")
	}
}
