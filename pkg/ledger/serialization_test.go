package ledger

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashToRun(t *testing.T) {
	t.Run("round trip preserves fields", func(t *testing.T) {
		original := validRun()
		original.Status = StatusFailed
		original.FinishedMs = original.StartedMs + 5000
		original.Failure = "step 'build' exited 2"

		hash := RunToHash(original)

		// Redis stores every hash field as a string
		stringHash := make(map[string]string, len(hash))
		for k, v := range hash {
			switch val := v.(type) {
			case string:
				stringHash[k] = val
			case int64:
				stringHash[k] = strconv.FormatInt(val, 10)
			}
		}

		restored, err := HashToRun(stringHash)
		require.NoError(t, err)
		assert.Equal(t, original, restored)
	})

	t.Run("missing started_ms rejected", func(t *testing.T) {
		_, err := HashToRun(map[string]string{"id": "x", "status": "running"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid started_ms")
	})

	t.Run("in-flight run has zero finished_ms", func(t *testing.T) {
		run, err := HashToRun(map[string]string{
			"id":         "abc",
			"status":     "running",
			"started_ms": "1700000000000",
		})
		require.NoError(t, err)
		assert.Zero(t, run.FinishedMs)
	})
}
