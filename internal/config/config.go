package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file slipway looks for at the Git root.
const DefaultFileName = "slipway.yml"

const (
	// DefaultTagFormat derives the release tag from the resolved version
	DefaultTagFormat = "v{version}"

	// DefaultArtifactsDir is where build steps are expected to leave distributables
	DefaultArtifactsDir = "dist"

	// DefaultReleaseTokenEnv names the env var holding the hosting platform token
	DefaultReleaseTokenEnv = "SLIPWAY_RELEASE_TOKEN"

	// DefaultIndexTokenEnv names the env var holding the package index token
	DefaultIndexTokenEnv = "SLIPWAY_INDEX_TOKEN"

	// DefaultStepTimeout applies when a step does not declare its own timeout
	DefaultStepTimeout = 10 * time.Minute
)

// projectNamePattern matches package-index-compatible project names:
// letters, digits, and separators (not at start/end).
var projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

// Config represents the top-level slipway.yml configuration
type Config struct {
	Version   string          `yaml:"version"`
	Project   ProjectConfig   `yaml:"project"`
	Runtime   *RuntimeConfig  `yaml:"runtime,omitempty"`
	Steps     []Step          `yaml:"steps"`
	Artifacts ArtifactsConfig `yaml:"artifacts,omitempty"`
	Release   *ReleaseConfig  `yaml:"release,omitempty"`
	Publish   *PublishConfig  `yaml:"publish,omitempty"`
	Ledger    *LedgerConfig   `yaml:"ledger,omitempty"`
}

// ProjectConfig identifies the package being released
type ProjectConfig struct {
	Name    string        `yaml:"name"`
	Version VersionSource `yaml:"version"`
}

// VersionSource specifies where the project's declared version is read from.
// Exactly one of the three sources must be configured:
//   - file + pattern: regex with one capture group applied to a metadata file
//   - command: argv whose trimmed stdout is the version
//   - git: `git describe --tags` with any leading "v" stripped
type VersionSource struct {
	Source  string   `yaml:"source"` // "file", "command", or "git"
	File    string   `yaml:"file,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
	Command []string `yaml:"command,omitempty"`
}

// RuntimeConfig provisions a container runtime for build steps.
// When present, every step runs inside a container from this image with the
// workspace bind-mounted at /workspace.
type RuntimeConfig struct {
	Image string     `yaml:"image"`
	Setup [][]string `yaml:"setup,omitempty"` // Commands run before the first step
}

// Step is a single build pipeline step
type Step struct {
	Name    string   `yaml:"name"`
	Run     []string `yaml:"run"`
	Env     []string `yaml:"env,omitempty"`     // KEY=value pairs appended to the pipeline environment
	Workdir string   `yaml:"workdir,omitempty"` // Relative to the workspace root
	Timeout string   `yaml:"timeout,omitempty"` // Go duration, default 10m
}

// TimeoutDuration returns the parsed step timeout, or the default when unset.
// Validate guarantees the string parses, so errors here are ignored.
func (s *Step) TimeoutDuration() time.Duration {
	if s.Timeout == "" {
		return DefaultStepTimeout
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return DefaultStepTimeout
	}
	return d
}

// ArtifactsConfig specifies where distributables are collected from
type ArtifactsConfig struct {
	Dir      string   `yaml:"dir,omitempty"`      // Default: dist
	Patterns []string `yaml:"patterns,omitempty"` // Globs within dir, default: all files
}

// ReleaseConfig specifies the hosted release created after a successful build
type ReleaseConfig struct {
	APIURL     string `yaml:"api_url,omitempty"` // Default: https://api.github.com
	Repository string `yaml:"repository"`        // owner/name
	TagFormat  string `yaml:"tag_format,omitempty"`
	TokenEnv   string `yaml:"token_env,omitempty"`
	Draft      bool   `yaml:"draft,omitempty"`
	Prerelease bool   `yaml:"prerelease,omitempty"`
	Assets     *bool  `yaml:"assets,omitempty"` // Upload artifacts as release assets (default true)
}

// UploadAssets reports whether collected artifacts should be attached to the release.
func (r *ReleaseConfig) UploadAssets() bool {
	return r.Assets == nil || *r.Assets
}

// PublishConfig specifies the package index upload performed after the release
type PublishConfig struct {
	URL          string `yaml:"url"`
	TokenEnv     string `yaml:"token_env,omitempty"`
	SkipExisting bool   `yaml:"skip_existing,omitempty"`
}

// LedgerConfig enables the Redis-backed run ledger
type LedgerConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db,omitempty"`
}

// Validate performs strict validation on the configuration and applies defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: project name
	if c.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if !projectNamePattern.MatchString(c.Project.Name) {
		return fmt.Errorf("invalid project name '%s': must be alphanumeric with ._- separators (not at start/end)", c.Project.Name)
	}

	if err := c.Project.Version.Validate(); err != nil {
		return err
	}

	// Required: at least one step
	if len(c.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}

	// Validate each step and enforce unique names
	namesSeen := make(map[string]bool)
	for i := range c.Steps {
		step := &c.Steps[i]
		if err := step.Validate(i); err != nil {
			return err
		}
		if namesSeen[step.Name] {
			return fmt.Errorf("duplicate step name '%s': step names must be unique", step.Name)
		}
		namesSeen[step.Name] = true
	}

	// Runtime validation
	if c.Runtime != nil {
		if c.Runtime.Image == "" {
			return fmt.Errorf("runtime.image is required when runtime is configured")
		}
		for i, cmd := range c.Runtime.Setup {
			if len(cmd) == 0 {
				return fmt.Errorf("runtime.setup[%d]: command cannot be empty", i)
			}
		}
	}

	// Apply artifact defaults
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = DefaultArtifactsDir
	}

	// Release validation and defaults
	if c.Release != nil {
		if err := c.Release.Validate(); err != nil {
			return err
		}
	}

	// Publish validation and defaults
	if c.Publish != nil {
		if err := c.Publish.Validate(); err != nil {
			return err
		}
	}

	// Ledger validation
	if c.Ledger != nil && c.Ledger.Addr == "" {
		return fmt.Errorf("ledger.addr is required when ledger is configured")
	}

	return nil
}

// Validate checks the version source configuration
func (v *VersionSource) Validate() error {
	switch v.Source {
	case "file":
		if v.File == "" {
			return fmt.Errorf("project.version: file is required for source 'file'")
		}
		if v.Pattern == "" {
			return fmt.Errorf("project.version: pattern is required for source 'file'")
		}
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return fmt.Errorf("project.version: invalid pattern: %w", err)
		}
		if re.NumSubexp() != 1 {
			return fmt.Errorf("project.version: pattern must have exactly one capture group, got %d", re.NumSubexp())
		}
	case "command":
		if len(v.Command) == 0 {
			return fmt.Errorf("project.version: command is required for source 'command'")
		}
	case "git":
		if v.File != "" || v.Pattern != "" || len(v.Command) > 0 {
			return fmt.Errorf("project.version: source 'git' takes no file, pattern, or command")
		}
	case "":
		return fmt.Errorf("project.version.source is required (must be 'file', 'command', or 'git')")
	default:
		return fmt.Errorf("project.version: invalid source: %s (must be 'file', 'command', or 'git')", v.Source)
	}
	return nil
}

// Validate checks a single step configuration
func (s *Step) Validate(index int) error {
	if s.Name == "" {
		return fmt.Errorf("steps[%d]: name is required", index)
	}
	if len(s.Run) == 0 {
		return fmt.Errorf("step '%s': run is required", s.Name)
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("step '%s': invalid env entry '%s' (expected KEY=value)", s.Name, kv)
		}
	}
	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return fmt.Errorf("step '%s': invalid timeout: %w", s.Name, err)
		}
	}
	return nil
}

// Validate checks the release configuration and applies defaults
func (r *ReleaseConfig) Validate() error {
	if r.Repository == "" {
		return fmt.Errorf("release.repository is required when release is configured")
	}
	parts := strings.Split(r.Repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid release.repository '%s' (expected owner/name)", r.Repository)
	}
	if r.APIURL == "" {
		r.APIURL = "https://api.github.com"
	}
	if r.TagFormat == "" {
		r.TagFormat = DefaultTagFormat
	}
	if !strings.Contains(r.TagFormat, "{version}") {
		return fmt.Errorf("release.tag_format '%s' must contain {version}", r.TagFormat)
	}
	if r.TokenEnv == "" {
		r.TokenEnv = DefaultReleaseTokenEnv
	}
	return nil
}

// Validate checks the publish configuration and applies defaults
func (p *PublishConfig) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("publish.url is required when publish is configured")
	}
	if p.TokenEnv == "" {
		p.TokenEnv = DefaultIndexTokenEnv
	}
	return nil
}

// Load reads and validates slipway.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
