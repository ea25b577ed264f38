package version

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/slipway/internal/config"
)

func TestResolve_FileSource(t *testing.T) {
	tmpDir := t.TempDir()
	pyproject := `[tool.poetry]
name = "my-package"
version = "1.4.2"
description = "test fixture"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "pyproject.toml"), []byte(pyproject), 0644))

	src := config.VersionSource{
		Source:  "file",
		File:    "pyproject.toml",
		Pattern: `version = "([^"]+)"`,
	}

	v, err := Resolve(src, tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", v)
}

func TestResolve_FileSource_PatternMatchesNothing(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "setup.cfg"), []byte("[metadata]\n"), 0644))

	src := config.VersionSource{
		Source:  "file",
		File:    "setup.cfg",
		Pattern: `version = "([^"]+)"`,
	}

	_, err := Resolve(src, tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched nothing")
}

func TestResolve_FileSource_MissingFile(t *testing.T) {
	src := config.VersionSource{
		Source:  "file",
		File:    "pyproject.toml",
		Pattern: `version = "([^"]+)"`,
	}

	_, err := Resolve(src, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read version file")
}

func TestResolve_CommandSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	src := config.VersionSource{
		Source:  "command",
		Command: []string{"sh", "-c", "echo 2.0.1"},
	}

	v, err := Resolve(src, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "2.0.1", v)
}

func TestResolve_CommandSource_Failure(t *testing.T) {
	src := config.VersionSource{
		Source:  "command",
		Command: []string{"false"},
	}

	_, err := Resolve(src, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version command")
}

func TestResolve_UnknownSource(t *testing.T) {
	_, err := Resolve(config.VersionSource{Source: "oracle"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown version source")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"plain semver", "1.2.3", false},
		{"pre-release", "1.2.3-rc1", false},
		{"post-release", "1.2.3.post1", false},
		{"build metadata", "1.2.3+local", false},
		{"empty", "", true},
		{"two components", "1.2", true},
		{"leading v", "v1.2.3", true},
		{"garbage", "latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validate(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatTag(t *testing.T) {
	assert.Equal(t, "v1.2.3", FormatTag("v{version}", "1.2.3"))
	assert.Equal(t, "release-1.2.3", FormatTag("release-{version}", "1.2.3"))
	assert.Equal(t, "my-pkg/1.2.3", FormatTag("my-pkg/{version}", "1.2.3"))
}
