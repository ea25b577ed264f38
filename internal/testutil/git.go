package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// InitGitRepo creates a temp directory containing a Git repository with one
// initial commit and chdirs into it for the duration of the test.
// Returns the repository path.
func InitGitRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	tmpDir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = tmpDir
		require.NoError(t, cmd.Run(), "git %v failed", args)
	}

	run("init")
	run("config", "user.email", "test@slipway.local")
	run("config", "user.name", "Slipway Test")

	if len(files) == 0 {
		files = map[string]string{"README.md": "# Test Project\n"}
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	run("add", ".")
	run("commit", "-m", "Initial commit")

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(originalDir) })

	return tmpDir
}
