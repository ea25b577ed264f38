package git_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/testutil"
)

func TestIsGitRepository(t *testing.T) {
	t.Run("inside a repository", func(t *testing.T) {
		testutil.InitGitRepo(t, nil)

		isRepo, err := git.NewChecker().IsGitRepository()
		require.NoError(t, err)
		assert.True(t, isRepo)
	})

	t.Run("outside a repository", func(t *testing.T) {
		tmpDir := t.TempDir()
		originalDir, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(tmpDir))
		t.Cleanup(func() { _ = os.Chdir(originalDir) })

		isRepo, err := git.NewChecker().IsGitRepository()
		require.NoError(t, err)
		assert.False(t, isRepo)
	})
}

func TestIsGitRoot(t *testing.T) {
	t.Run("at the root", func(t *testing.T) {
		testutil.InitGitRepo(t, nil)

		isRoot, _, err := git.NewChecker().IsGitRoot()
		require.NoError(t, err)
		assert.True(t, isRoot)
	})

	t.Run("in a subdirectory", func(t *testing.T) {
		repoDir := testutil.InitGitRepo(t, map[string]string{
			"src/main.py": "print('hello')\n",
		})
		require.NoError(t, os.Chdir(filepath.Join(repoDir, "src")))

		isRoot, gitRoot, err := git.NewChecker().IsGitRoot()
		require.NoError(t, err)
		assert.False(t, isRoot)
		assert.NotEmpty(t, gitRoot)
	})
}

func TestValidateGitContext(t *testing.T) {
	t.Run("valid at root", func(t *testing.T) {
		testutil.InitGitRepo(t, nil)
		assert.NoError(t, git.NewChecker().ValidateGitContext())
	})

	t.Run("fails in subdirectory", func(t *testing.T) {
		repoDir := testutil.InitGitRepo(t, map[string]string{
			"src/main.py": "print('hello')\n",
		})
		require.NoError(t, os.Chdir(filepath.Join(repoDir, "src")))

		err := git.NewChecker().ValidateGitContext()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must run from Git repository root")
	})
}

func TestIsWorkspaceClean(t *testing.T) {
	repoDir := testutil.InitGitRepo(t, nil)
	checker := git.NewChecker()

	clean, err := checker.IsWorkspaceClean()
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "untracked.txt"), []byte("wip\n"), 0644))

	clean, err = checker.IsWorkspaceClean()
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestGetDirtyFiles(t *testing.T) {
	repoDir := testutil.InitGitRepo(t, map[string]string{
		"tracked.txt": "original\n",
	})
	checker := git.NewChecker()

	dirty, err := checker.GetDirtyFiles()
	require.NoError(t, err)
	assert.Empty(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "tracked.txt"), []byte("changed\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "untracked.txt"), []byte("new\n"), 0644))

	dirty, err = checker.GetDirtyFiles()
	require.NoError(t, err)
	assert.Contains(t, dirty, "Uncommitted changes:")
	assert.Contains(t, dirty, " M tracked.txt")
	assert.Contains(t, dirty, "Untracked files:")
	assert.Contains(t, dirty, "?? untracked.txt")
}
