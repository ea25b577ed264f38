// Package artifact collects and fingerprints the distributables a build
// produces. Collection happens after the last build step and before any
// release or publish stage, so that everything leaving the machine has a
// recorded checksum.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/go-units"
)

// Artifact is a single collected distributable
type Artifact struct {
	Path   string `json:"path"`   // Absolute path on disk
	Name   string `json:"name"`   // Base file name
	SHA256 string `json:"sha256"` // Hex-encoded digest
	Size   int64  `json:"size"`   // Bytes
}

// HumanSize returns the artifact size in human-readable form (e.g. "1.24MB")
func (a *Artifact) HumanSize() string {
	return units.HumanSize(float64(a.Size))
}

// Collect gathers artifacts from dir matching the given glob patterns.
// With no patterns, every regular file directly under dir is collected.
// Returns an error if the directory is missing or no files match: a build
// that produced nothing publishable is a failed build.
func Collect(dir string, patterns []string) ([]Artifact, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("artifacts directory not found: %s (did the build steps run?)", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifacts path is not a directory: %s", dir)
	}

	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	seen := make(map[string]bool)
	var artifacts []Artifact

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid artifact pattern %q: %w", pattern, err)
		}

		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("failed to stat artifact %s: %w", path, err)
			}
			if info.IsDir() {
				continue
			}

			digest, err := checksum(path)
			if err != nil {
				return nil, err
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve artifact path %s: %w", path, err)
			}

			artifacts = append(artifacts, Artifact{
				Path:   absPath,
				Name:   filepath.Base(path),
				SHA256: digest,
				Size:   info.Size(),
			})
		}
	}

	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no artifacts found in %s (patterns: %s)", dir, strings.Join(patterns, ", "))
	}

	// Stable ordering for ledger records and release asset upload
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})

	return artifacts, nil
}

// VerifyVersion checks that every artifact file name embeds the resolved
// version. A mismatch means the built distributables disagree with the
// project's declared version, and publishing them would pin the wrong
// version to the release tag.
//
// Wheel-style names normalize "-" in versions to "_", so both spellings
// are accepted.
func VerifyVersion(artifacts []Artifact, version string) error {
	normalized := strings.ReplaceAll(version, "-", "_")

	for _, a := range artifacts {
		if strings.Contains(a.Name, version) || strings.Contains(a.Name, normalized) {
			continue
		}
		return fmt.Errorf("artifact %s does not contain version %s: built artifacts disagree with the declared project version", a.Name, version)
	}

	return nil
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum artifact %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
