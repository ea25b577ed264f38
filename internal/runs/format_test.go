package runs

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/slipway/pkg/ledger"
)

func sampleRun(status ledger.RunStatus) *ledger.Run {
	started := time.Now().Add(-5 * time.Minute).UnixMilli()
	run := &ledger.Run{
		ID:        uuid.New().String(),
		Project:   "my-package",
		Version:   "1.2.3",
		Tag:       "v1.2.3",
		Commit:    "0123456789abcdef0123456789abcdef01234567",
		Status:    status,
		StartedMs: started,
	}
	if status != ledger.StatusRunning {
		run.FinishedMs = started + 42000
	}
	return run
}

func TestFormatTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		count := FormatTable(&buf, nil, "my-package")
		assert.Equal(t, 0, count)
		assert.Contains(t, buf.String(), "No runs found for project 'my-package'")
	})

	t.Run("renders rows", func(t *testing.T) {
		runs := []*ledger.Run{
			sampleRun(ledger.StatusSucceeded),
			sampleRun(ledger.StatusRunning),
		}

		var buf bytes.Buffer
		count := FormatTable(&buf, runs, "my-package")
		out := buf.String()

		assert.Equal(t, 2, count)
		assert.Contains(t, out, "Runs for project 'my-package'")
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "VERSION")
		assert.Contains(t, out, "succeeded")
		assert.Contains(t, out, "running")
		assert.Contains(t, out, "2 runs found")

		// Truncated ID, finished duration, in-flight placeholder
		assert.Contains(t, out, runs[0].ID[:8])
		assert.Contains(t, out, "42s")
		assert.Contains(t, out, " -\n")
	})

	t.Run("singular count", func(t *testing.T) {
		var buf bytes.Buffer
		FormatTable(&buf, []*ledger.Run{sampleRun(ledger.StatusFailed)}, "my-package")
		assert.Contains(t, buf.String(), "1 run found")
	})
}

func TestFormatJSONL(t *testing.T) {
	runs := []*ledger.Run{
		sampleRun(ledger.StatusSucceeded),
		sampleRun(ledger.StatusFailed),
	}

	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, runs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	for i, line := range lines {
		var decoded ledger.Run
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		assert.Equal(t, runs[i].ID, decoded.ID)
		assert.Equal(t, runs[i].Status, decoded.Status)
	}
}

func TestFormatRunDetail(t *testing.T) {
	run := sampleRun(ledger.StatusSucceeded)
	steps := []*ledger.StepResult{
		{RunID: run.ID, Index: 0, Name: "build", Stage: ledger.StageBuild, DurationMs: 1500},
	}
	artifacts := []*ledger.Artifact{
		{RunID: run.ID, Name: "my_package-1.2.3.tar.gz", SHA256: "deadbeef", Size: 2048},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatRunDetail(&buf, run, steps, artifacts))

	var decoded struct {
		Run       *ledger.Run          `json:"run"`
		Steps     []*ledger.StepResult `json:"steps"`
		Artifacts []*ledger.Artifact   `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, run.ID, decoded.Run.ID)
	require.Len(t, decoded.Steps, 1)
	assert.Equal(t, "build", decoded.Steps[0].Name)
	require.Len(t, decoded.Artifacts, 1)
	assert.Equal(t, int64(2048), decoded.Artifacts[0].Size)
}

func TestFormatColumn(t *testing.T) {
	assert.Equal(t, "short", formatColumn("short", 10))
	assert.Equal(t, "very-long…", formatColumn("very-long-value", 10))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "30s", formatAge(time.Now().Add(-30*time.Second).UnixMilli()))
	assert.Equal(t, "5m", formatAge(time.Now().Add(-5*time.Minute).UnixMilli()))
	assert.Equal(t, "3h", formatAge(time.Now().Add(-3*time.Hour).UnixMilli()))
	assert.Equal(t, "2d", formatAge(time.Now().Add(-48*time.Hour).UnixMilli()))
}
