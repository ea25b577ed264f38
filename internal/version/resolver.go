// Package version resolves the project's declared version from project
// metadata and derives the release tag from it. The tag is always a pure
// function of the declared version: there is no path through slipway where
// a release gets tagged with anything other than what the project declares.
package version

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/git"
)

// versionPattern is a loose semver shape: MAJOR.MINOR.PATCH with an optional
// pre-release or build suffix. Package indexes are stricter than this, but
// they reject their own way; slipway only guards against obvious garbage.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+([.+-][0-9A-Za-z.-]+)?$`)

// Resolve reads the project's declared version using the configured source.
// dir is the workspace root; file paths and commands are resolved against it.
func Resolve(src config.VersionSource, dir string) (string, error) {
	switch src.Source {
	case "file":
		return resolveFromFile(src, dir)
	case "command":
		return resolveFromCommand(src, dir)
	case "git":
		return resolveFromGit()
	default:
		return "", fmt.Errorf("unknown version source: %s", src.Source)
	}
}

func resolveFromFile(src config.VersionSource, dir string) (string, error) {
	path := src.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read version file: %w", err)
	}

	re, err := regexp.Compile(src.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid version pattern: %w", err)
	}

	match := re.FindSubmatch(data)
	if match == nil {
		return "", fmt.Errorf("version pattern %q matched nothing in %s", src.Pattern, src.File)
	}
	if len(match) < 2 {
		return "", fmt.Errorf("version pattern %q has no capture group", src.Pattern)
	}

	return validate(string(match[1]))
}

func resolveFromCommand(src config.VersionSource, dir string) (string, error) {
	cmd := exec.Command(src.Command[0], src.Command[1:]...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("version command %v failed: %w", src.Command, err)
	}

	return validate(strings.TrimSpace(string(output)))
}

func resolveFromGit() (string, error) {
	described, err := git.NewChecker().Describe()
	if err != nil {
		return "", err
	}

	return validate(strings.TrimPrefix(described, "v"))
}

// validate rejects version strings that do not look like a release version.
func validate(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("resolved version is empty")
	}
	if !versionPattern.MatchString(v) {
		return "", fmt.Errorf("resolved version %q does not look like a version (expected e.g. 1.2.3 or 1.2.3-rc1)", v)
	}
	return v, nil
}

// FormatTag expands {version} in the tag format.
// Config validation guarantees the placeholder is present.
func FormatTag(format, version string) string {
	return strings.ReplaceAll(format, "{version}", version)
}
