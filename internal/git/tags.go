package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// CurrentCommit returns the full SHA of HEAD.
func (c *Checker) CurrentCommit() (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// TagExists checks whether the named tag already exists in the repository.
func (c *Checker) TagExists(tag string) (bool, error) {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/tags/"+tag)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}

// CreateTag creates an annotated tag at HEAD.
// Fails if the tag already exists; callers should check TagExists first when
// re-running a release is expected to be a no-op.
func (c *Checker) CreateTag(tag, message string) error {
	cmd := exec.Command("git", "tag", "-a", tag, "-m", message)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create tag %s: %s: %w", tag, strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Describe returns the output of `git describe --tags`, used as a version
// source for projects that version purely by tag.
func (c *Checker) Describe() (string, error) {
	cmd := exec.Command("git", "describe", "--tags")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to describe tags (does the repository have any tags?): %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
