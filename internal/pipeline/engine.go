// Package pipeline executes the release pipeline: build steps in order,
// artifact collection, the hosted release, and the package index upload.
//
// The pipeline is strictly fail-fast. The first step that exits non-zero,
// and the first stage that errors, aborts everything after it. There is no
// step-level retry and no partial-success state: a run either ships or it
// fails with a recorded reason.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/slipway/internal/artifact"
	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/printer"
	"github.com/dyluth/slipway/internal/publish"
	"github.com/dyluth/slipway/internal/release"
	"github.com/dyluth/slipway/internal/version"
	"github.com/dyluth/slipway/pkg/ledger"
)

// outputTail is how much step output is kept in ledger records
const outputTail = 4 * 1024

// Releaser creates hosted releases. Satisfied by *release.Client.
type Releaser interface {
	CreateRelease(ctx context.Context, req release.Request) (*release.Release, error)
	UploadAsset(ctx context.Context, rel *release.Release, art artifact.Artifact) error
}

// Publisher uploads artifacts to a package index. Satisfied by *publish.Client.
type Publisher interface {
	Upload(ctx context.Context, name, version string, art artifact.Artifact) error
}

// StepError reports a build step that ran and exited non-zero.
type StepError struct {
	Step     string
	ExitCode int
	Output   string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step '%s' failed with exit code %d", e.Step, e.ExitCode)
}

// Params wires an Engine. Config, Workspace, and Executor are required.
// Ledger is optional (no run history without it). Releaser and Publisher
// are optional overrides; when nil the engine builds real clients from the
// config at stage time, which is when credentials are read from the
// environment.
type Params struct {
	Config    *config.Config
	Env       *config.Env
	Workspace string
	Executor  Executor
	Git       *git.Checker
	BaseEnv   []string // Environment steps inherit (host: os.Environ(), container: nil)
	Ledger    *ledger.Client
	Releaser  Releaser
	Publisher Publisher
	RunID     string // Pre-assigned run ID; generated when empty
}

// Options control which stages of a run execute.
type Options struct {
	DryRun      bool // Stop after artifact collection; nothing leaves the machine
	SkipRelease bool
	SkipPublish bool
	AllowDirty  bool // Permit uncommitted changes (build-only workflows)
}

// Result summarizes a completed run.
type Result struct {
	RunID      string
	Version    string
	Tag        string
	Commit     string
	Steps      []*ledger.StepResult
	Artifacts  []artifact.Artifact
	ReleaseURL string
	Published  []string
}

// Engine executes release pipeline runs.
type Engine struct {
	cfg       *config.Config
	env       *config.Env
	workspace string
	executor  Executor
	checker   *git.Checker
	baseEnv   []string
	ledger    *ledger.Client
	releaser  Releaser
	publisher Publisher
	runID     string
}

// NewEngine creates a pipeline engine from the given params.
func NewEngine(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if p.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	if p.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if p.Git == nil {
		p.Git = git.NewChecker()
	}
	if p.Env == nil {
		p.Env = &config.Env{HTTPTimeout: 30 * time.Second}
	}
	if p.RunID == "" {
		p.RunID = uuid.New().String()
	}

	return &Engine{
		cfg:       p.Config,
		env:       p.Env,
		workspace: p.Workspace,
		executor:  p.Executor,
		checker:   p.Git,
		baseEnv:   p.BaseEnv,
		ledger:    p.Ledger,
		releaser:  p.Releaser,
		publisher: p.Publisher,
		runID:     p.RunID,
	}, nil
}

// Run executes the pipeline. On failure the returned error describes the
// first thing that went wrong; the (partial) Result is still returned so
// callers can report what did happen before the failure.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	// Resolve the declared version before doing anything else: every later
	// stage (tag, release, publish) is derived from it.
	resolved, err := version.Resolve(e.cfg.Project.Version, e.workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project version: %w", err)
	}

	tagFormat := config.DefaultTagFormat
	if e.cfg.Release != nil {
		tagFormat = e.cfg.Release.TagFormat
	}
	tag := version.FormatTag(tagFormat, resolved)

	commit, err := e.checker.CurrentCommit()
	if err != nil {
		return nil, err
	}

	// Releasing from a dirty workspace would tag a commit that doesn't
	// match the built artifacts
	if e.releasing(opts) && !opts.AllowDirty {
		clean, err := e.checker.IsWorkspaceClean()
		if err != nil {
			return nil, err
		}
		if !clean {
			dirty, _ := e.checker.GetDirtyFiles()
			return nil, fmt.Errorf("workspace has uncommitted changes\n\n%s\n\nCommit your changes before releasing, or use --dry-run to build only", dirty)
		}
	}

	result := &Result{
		RunID:   e.runID,
		Version: resolved,
		Tag:     tag,
		Commit:  commit,
	}

	run := &ledger.Run{
		ID:        result.RunID,
		Project:   e.cfg.Project.Name,
		Version:   resolved,
		Tag:       tag,
		Commit:    commit,
		Status:    ledger.StatusRunning,
		StartedMs: time.Now().UnixMilli(),
	}
	e.recordRunStart(ctx, run)

	printer.Info("Releasing %s %s (tag %s)\n", e.cfg.Project.Name, resolved, tag)

	// Build steps, strictly in order, fail-fast
	for i, step := range e.cfg.Steps {
		if err := e.runStep(ctx, result, run, i, step); err != nil {
			return result, err
		}
	}

	// Collect artifacts and verify them against the declared version
	if err := e.collectArtifacts(ctx, result, run); err != nil {
		return result, err
	}

	if opts.DryRun {
		e.finalizeRun(ctx, run, ledger.StatusSucceeded, "")
		printer.Success("Dry run complete: %d artifact(s) built, nothing published\n", len(result.Artifacts))
		return result, nil
	}

	// Hosted release
	if e.cfg.Release != nil && !opts.SkipRelease {
		if err := e.runRelease(ctx, result, run); err != nil {
			return result, err
		}
	}

	// Package index upload
	if e.cfg.Publish != nil && !opts.SkipPublish {
		if err := e.runPublish(ctx, result, run); err != nil {
			return result, err
		}
	}

	e.finalizeRun(ctx, run, ledger.StatusSucceeded, "")
	return result, nil
}

// releasing reports whether this run will push anything off the machine.
func (e *Engine) releasing(opts Options) bool {
	if opts.DryRun {
		return false
	}
	releasing := e.cfg.Release != nil && !opts.SkipRelease
	publishing := e.cfg.Publish != nil && !opts.SkipPublish
	return releasing || publishing
}

// runStep executes one build step and records its result.
func (e *Engine) runStep(ctx context.Context, result *Result, run *ledger.Run, index int, step config.Step) error {
	printer.Step("Running step '%s'...\n", step.Name)

	outcome, err := e.executor.Execute(ctx, step, e.stepEnv(result, step))
	if err != nil {
		e.recordStep(ctx, result, &ledger.StepResult{
			RunID:    run.ID,
			Index:    index,
			Name:     step.Name,
			Stage:    ledger.StageBuild,
			ExitCode: -1,
			Output:   err.Error(),
		})
		e.finalizeRun(ctx, run, ledger.StatusFailed, err.Error())
		return err
	}

	e.recordStep(ctx, result, &ledger.StepResult{
		RunID:      run.ID,
		Index:      index,
		Name:       step.Name,
		Stage:      ledger.StageBuild,
		ExitCode:   outcome.ExitCode,
		DurationMs: outcome.Duration.Milliseconds(),
		Output:     tail(outcome.Output),
	})

	if outcome.ExitCode != 0 {
		stepErr := &StepError{Step: step.Name, ExitCode: outcome.ExitCode, Output: outcome.Output}
		e.finalizeRun(ctx, run, ledger.StatusFailed, stepErr.Error())
		return stepErr
	}

	// With SLIPWAY_DEBUG, echo step output; otherwise only failures show it
	if e.env.Debug && outcome.Output != "" {
		printer.Detail("%s\n", outcome.Output)
	}

	printer.Success("Step '%s' completed in %s\n", step.Name, outcome.Duration.Round(time.Millisecond))
	return nil
}

// stepEnv builds the environment a step runs with: the base environment,
// the pipeline's own variables, then the step's declared env on top.
func (e *Engine) stepEnv(result *Result, step config.Step) []string {
	env := make([]string, 0, len(e.baseEnv)+len(step.Env)+4)
	env = append(env, e.baseEnv...)
	env = append(env,
		"SLIPWAY_PROJECT="+e.cfg.Project.Name,
		"SLIPWAY_VERSION="+result.Version,
		"SLIPWAY_RUN_ID="+result.RunID,
		"SLIPWAY_COMMIT="+result.Commit,
	)
	env = append(env, step.Env...)
	return env
}

// collectArtifacts gathers distributables and enforces the version invariant.
func (e *Engine) collectArtifacts(ctx context.Context, result *Result, run *ledger.Run) error {
	printer.Step("Collecting artifacts from %s/...\n", e.cfg.Artifacts.Dir)
	start := time.Now()

	dir := e.cfg.Artifacts.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.workspace, dir)
	}

	artifacts, err := artifact.Collect(dir, e.cfg.Artifacts.Patterns)
	if err == nil {
		err = artifact.VerifyVersion(artifacts, result.Version)
	}

	stepResult := &ledger.StepResult{
		RunID:      run.ID,
		Index:      len(result.Steps),
		Name:       "collect-artifacts",
		Stage:      ledger.StageCollect,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		stepResult.ExitCode = 1
		stepResult.Output = err.Error()
		e.recordStep(ctx, result, stepResult)
		e.finalizeRun(ctx, run, ledger.StatusFailed, err.Error())
		return err
	}

	e.recordStep(ctx, result, stepResult)
	result.Artifacts = artifacts

	for _, a := range artifacts {
		printer.Detail("%s  %s  sha256:%s\n", a.Name, a.HumanSize(), a.SHA256[:12])
		e.recordArtifact(ctx, &ledger.Artifact{
			RunID:  run.ID,
			Name:   a.Name,
			SHA256: a.SHA256,
			Size:   a.Size,
		})
	}
	printer.Success("Collected %d artifact(s)\n", len(artifacts))
	return nil
}

// runRelease creates the annotated tag and the hosted release.
func (e *Engine) runRelease(ctx context.Context, result *Result, run *ledger.Run) error {
	printer.Step("Creating release %s...\n", result.Tag)
	start := time.Now()

	err := e.createRelease(ctx, result)

	stepResult := &ledger.StepResult{
		RunID:      run.ID,
		Index:      len(result.Steps),
		Name:       "create-release",
		Stage:      ledger.StageRelease,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		stepResult.ExitCode = 1
		stepResult.Output = err.Error()
		e.recordStep(ctx, result, stepResult)
		e.finalizeRun(ctx, run, ledger.StatusFailed, err.Error())
		return err
	}

	e.recordStep(ctx, result, stepResult)
	printer.Success("Release %s created\n", result.Tag)
	return nil
}

func (e *Engine) createRelease(ctx context.Context, result *Result) error {
	releaser := e.releaser
	if releaser == nil {
		token, err := config.Token(e.cfg.Release.TokenEnv)
		if err != nil {
			return err
		}
		releaser = release.NewClient(e.cfg.Release.APIURL, e.cfg.Release.Repository, token, e.env.HTTPTimeout)
	}

	// Tag locally first so the workspace agrees with the hosting platform.
	// The platform materializes the tag server-side at the run's commit.
	exists, err := e.checker.TagExists(result.Tag)
	if err != nil {
		return err
	}
	if !exists {
		message := fmt.Sprintf("%s %s", e.cfg.Project.Name, result.Version)
		if err := e.checker.CreateTag(result.Tag, message); err != nil {
			return err
		}
	}

	rel, err := releaser.CreateRelease(ctx, release.Request{
		TagName:         result.Tag,
		TargetCommitish: result.Commit,
		Name:            result.Tag,
		Body:            releaseBody(result),
		Draft:           e.cfg.Release.Draft,
		Prerelease:      e.cfg.Release.Prerelease,
	})
	if err != nil {
		if errors.Is(err, release.ErrReleaseExists) {
			return fmt.Errorf("%w: %s was already released; bump the project version or use --skip-release", err, result.Tag)
		}
		return err
	}
	result.ReleaseURL = rel.HTMLURL

	if e.cfg.Release.UploadAssets() {
		for _, a := range result.Artifacts {
			if err := releaser.UploadAsset(ctx, rel, a); err != nil {
				return fmt.Errorf("failed to upload asset %s: %w", a.Name, err)
			}
		}
	}

	return nil
}

// releaseBody renders the release notes: the artifact manifest with digests.
func releaseBody(result *Result) string {
	body := fmt.Sprintf("Built from %s\n\n| Artifact | Size | SHA-256 |\n|---|---|---|\n", result.Commit)
	for _, a := range result.Artifacts {
		body += fmt.Sprintf("| %s | %s | `%s` |\n", a.Name, a.HumanSize(), a.SHA256)
	}
	return body
}

// runPublish uploads every collected artifact to the package index.
func (e *Engine) runPublish(ctx context.Context, result *Result, run *ledger.Run) error {
	printer.Step("Publishing %d artifact(s) to package index...\n", len(result.Artifacts))
	start := time.Now()

	publisher := e.publisher
	if publisher == nil {
		token, err := config.Token(e.cfg.Publish.TokenEnv)
		if err != nil {
			e.recordPublishFailure(ctx, result, run, start, err)
			return err
		}
		publisher = publish.NewClient(e.cfg.Publish.URL, token, e.env.HTTPTimeout)
	}

	for _, a := range result.Artifacts {
		err := publisher.Upload(ctx, e.cfg.Project.Name, result.Version, a)
		if err != nil {
			if errors.Is(err, publish.ErrAlreadyPublished) && e.cfg.Publish.SkipExisting {
				printer.Warning("%s already on index, skipping\n", a.Name)
				continue
			}
			err = fmt.Errorf("failed to publish %s: %w", a.Name, err)
			e.recordPublishFailure(ctx, result, run, start, err)
			return err
		}
		result.Published = append(result.Published, a.Name)
	}

	e.recordStep(ctx, result, &ledger.StepResult{
		RunID:      run.ID,
		Index:      len(result.Steps),
		Name:       "publish-index",
		Stage:      ledger.StagePublish,
		DurationMs: time.Since(start).Milliseconds(),
	})
	printer.Success("Published %d artifact(s)\n", len(result.Published))
	return nil
}

func (e *Engine) recordPublishFailure(ctx context.Context, result *Result, run *ledger.Run, start time.Time, err error) {
	e.recordStep(ctx, result, &ledger.StepResult{
		RunID:      run.ID,
		Index:      len(result.Steps),
		Name:       "publish-index",
		Stage:      ledger.StagePublish,
		ExitCode:   1,
		DurationMs: time.Since(start).Milliseconds(),
		Output:     err.Error(),
	})
	e.finalizeRun(ctx, run, ledger.StatusFailed, err.Error())
}

// Ledger writes are observability, not control flow: failures are logged
// and the release continues.

func (e *Engine) recordRunStart(ctx context.Context, run *ledger.Run) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.CreateRun(ctx, run); err != nil {
		log.Printf("[ERROR] Failed to record run in ledger: %v", err)
	}
}

func (e *Engine) recordStep(ctx context.Context, result *Result, stepResult *ledger.StepResult) {
	result.Steps = append(result.Steps, stepResult)
	if e.ledger == nil {
		return
	}
	if err := e.ledger.AppendStepResult(ctx, stepResult); err != nil {
		log.Printf("[ERROR] Failed to record step result in ledger: %v", err)
	}
}

func (e *Engine) recordArtifact(ctx context.Context, art *ledger.Artifact) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.AddArtifact(ctx, art); err != nil {
		log.Printf("[ERROR] Failed to record artifact in ledger: %v", err)
	}
}

func (e *Engine) finalizeRun(ctx context.Context, run *ledger.Run, status ledger.RunStatus, failure string) {
	run.Status = status
	run.FinishedMs = time.Now().UnixMilli()
	run.Failure = failure
	if e.ledger == nil {
		return
	}
	if err := e.ledger.UpdateRun(ctx, run); err != nil {
		log.Printf("[ERROR] Failed to finalize run in ledger: %v", err)
	}
}

// tail returns the last outputTail bytes of s for ledger records.
func tail(s string) string {
	if len(s) <= outputTail {
		return s
	}
	return s[len(s)-outputTail:]
}
