package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRun() *Run {
	return &Run{
		ID:        uuid.New().String(),
		Project:   "my-package",
		Version:   "1.2.3",
		Tag:       "v1.2.3",
		Commit:    "0123456789abcdef0123456789abcdef01234567",
		Status:    StatusRunning,
		StartedMs: time.Now().UnixMilli(),
	}
}

func TestRunValidate(t *testing.T) {
	t.Run("valid running run", func(t *testing.T) {
		assert.NoError(t, validRun().Validate())
	})

	t.Run("valid finished run", func(t *testing.T) {
		run := validRun()
		run.Status = StatusSucceeded
		run.FinishedMs = run.StartedMs + 1000
		assert.NoError(t, run.Validate())
	})

	t.Run("invalid UUID", func(t *testing.T) {
		run := validRun()
		run.ID = "not-a-uuid"
		err := run.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a valid UUID")
	})

	t.Run("empty project", func(t *testing.T) {
		run := validRun()
		run.Project = ""
		assert.Error(t, run.Validate())
	})

	t.Run("empty version", func(t *testing.T) {
		run := validRun()
		run.Version = ""
		assert.Error(t, run.Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		run := validRun()
		run.Status = "paused"
		assert.Error(t, run.Validate())
	})

	t.Run("running run with finished_ms", func(t *testing.T) {
		run := validRun()
		run.FinishedMs = run.StartedMs + 1
		err := run.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "running run cannot have finished_ms")
	})

	t.Run("finished run without finished_ms", func(t *testing.T) {
		run := validRun()
		run.Status = StatusFailed
		err := run.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "finished run must have finished_ms")
	})
}

func TestStepResultValidate(t *testing.T) {
	valid := func() *StepResult {
		return &StepResult{
			RunID:      uuid.New().String(),
			Index:      0,
			Name:       "build",
			Stage:      StageBuild,
			ExitCode:   0,
			DurationMs: 1500,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("invalid run ID", func(t *testing.T) {
		sr := valid()
		sr.RunID = "nope"
		assert.Error(t, sr.Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		sr := valid()
		sr.Name = ""
		assert.Error(t, sr.Validate())
	})

	t.Run("negative index", func(t *testing.T) {
		sr := valid()
		sr.Index = -1
		assert.Error(t, sr.Validate())
	})

	t.Run("unknown stage", func(t *testing.T) {
		sr := valid()
		sr.Stage = "deploy"
		assert.Error(t, sr.Validate())
	})
}

func TestArtifactValidate(t *testing.T) {
	valid := func() *Artifact {
		return &Artifact{
			RunID:  uuid.New().String(),
			Name:   "my_package-1.2.3.tar.gz",
			SHA256: "deadbeef",
			Size:   1024,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		a := valid()
		a.Name = ""
		assert.Error(t, a.Validate())
	})

	t.Run("empty sha256", func(t *testing.T) {
		a := valid()
		a.SHA256 = ""
		assert.Error(t, a.Validate())
	})
}

func TestStatusValidate(t *testing.T) {
	assert.NoError(t, StatusRunning.Validate())
	assert.NoError(t, StatusSucceeded.Validate())
	assert.NoError(t, StatusFailed.Validate())
	assert.Error(t, RunStatus("queued").Validate())
}
