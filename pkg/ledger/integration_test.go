//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/slipway/internal/testutil"
	"github.com/dyluth/slipway/pkg/ledger"
)

// TestLedgerLifecycle_RealRedis exercises the full run lifecycle against a
// real Redis server: create, record steps and artifacts, finalize, list.
func TestLedgerLifecycle_RealRedis(t *testing.T) {
	addr := testutil.SetupRedis(t)
	ctx := context.Background()

	client, err := ledger.NewClient(&redis.Options{Addr: addr}, "integration-project")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(ctx))

	run := &ledger.Run{
		ID:        uuid.New().String(),
		Project:   "integration-project",
		Version:   "1.0.0",
		Tag:       "v1.0.0",
		Commit:    "0123456789abcdef0123456789abcdef01234567",
		Status:    ledger.StatusRunning,
		StartedMs: time.Now().UnixMilli(),
	}
	require.NoError(t, client.CreateRun(ctx, run))

	for i, name := range []string{"install", "build"} {
		require.NoError(t, client.AppendStepResult(ctx, &ledger.StepResult{
			RunID:      run.ID,
			Index:      i,
			Name:       name,
			Stage:      ledger.StageBuild,
			DurationMs: 100,
		}))
	}

	require.NoError(t, client.AddArtifact(ctx, &ledger.Artifact{
		RunID:  run.ID,
		Name:   "pkg-1.0.0.tar.gz",
		SHA256: "deadbeef",
		Size:   2048,
	}))

	run.Status = ledger.StatusSucceeded
	run.FinishedMs = time.Now().UnixMilli()
	require.NoError(t, client.UpdateRun(ctx, run))

	got, err := client.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, got.Status)

	steps, err := client.GetStepResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "install", steps[0].Name)

	artifacts, err := client.GetArtifacts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	runs, err := client.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}
