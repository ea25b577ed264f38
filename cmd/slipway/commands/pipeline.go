package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/slipway/internal/config"
	dockerpkg "github.com/dyluth/slipway/internal/docker"
	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/pipeline"
	"github.com/dyluth/slipway/internal/printer"
	"github.com/dyluth/slipway/pkg/ledger"
)

// configLoadError wraps config load failures with init guidance.
func configLoadError(err error) error {
	return printer.Error(
		"slipway.yml not found or invalid",
		fmt.Sprintf("No valid configuration file found in the current directory.\n\nError details: %v", err),
		[]string{
			"Initialize your project first: slipway init",
			"Fix the reported problem in slipway.yml and retry",
		},
	)
}

// buildEngine assembles a pipeline engine from config, environment, and the
// current workspace. Returns the engine and a cleanup func for any resources
// (Docker client, ledger connection) it opened.
func buildEngine(ctx context.Context, checker *git.Checker, cfg *config.Config) (*pipeline.Engine, func(), error) {
	envCfg, err := config.LoadEnv()
	if err != nil {
		return nil, nil, err
	}

	workspace, err := checker.GetGitRoot()
	if err != nil {
		return nil, nil, err
	}

	runID := uuid.New().String()

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Executor: container runtime when configured, host otherwise
	var executor pipeline.Executor
	var baseEnv []string
	if cfg.Runtime != nil {
		cli, err := dockerpkg.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { cli.Close() })

		printer.Step("Provisioning runtime %s...\n", cfg.Runtime.Image)
		rt, err := dockerpkg.NewRuntime(ctx, cli, cfg.Runtime.Image, workspace, cfg.Project.Name, runID)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		// Setup commands prepare the runtime before the first step
		for _, setupCmd := range cfg.Runtime.Setup {
			setupStep := config.Step{Name: "runtime-setup", Run: setupCmd}
			exitCode, output, err := rt.RunStep(ctx, setupStep.Name, setupCmd, nil, "", config.DefaultStepTimeout)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("runtime setup failed: %w", err)
			}
			if exitCode != 0 {
				cleanup()
				return nil, nil, fmt.Errorf("runtime setup command %v exited %d:\n%s", setupCmd, exitCode, output)
			}
		}
		printer.Success("Runtime ready\n")

		executor = &pipeline.ContainerExecutor{Runtime: rt}
	} else {
		executor = &pipeline.HostExecutor{Dir: workspace}
		baseEnv = os.Environ()
	}

	// Ledger is optional observability: an unreachable Redis degrades to a
	// warning, never a failed release
	var ledgerClient *ledger.Client
	if addr := envCfg.LedgerAddr(cfg.Ledger); addr != "" {
		db := 0
		if cfg.Ledger != nil {
			db = cfg.Ledger.DB
		}
		client, err := ledger.NewClient(&redis.Options{Addr: addr, DB: db}, cfg.Project.Name)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx)
		pingCancel()
		if err != nil {
			printer.Warning("Run ledger unreachable at %s, continuing without history: %v\n", addr, err)
			client.Close()
		} else {
			ledgerClient = client
			cleanups = append(cleanups, func() { ledgerClient.Close() })
		}
	}

	engine, err := pipeline.NewEngine(pipeline.Params{
		Config:    cfg,
		Env:       envCfg,
		Workspace: workspace,
		Executor:  executor,
		Git:       checker,
		BaseEnv:   baseEnv,
		Ledger:    ledgerClient,
		RunID:     runID,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return engine, cleanup, nil
}

// reportRunError renders a pipeline failure with enough context to act on.
func reportRunError(err error) error {
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		return printer.ErrorWithContext(
			"Release failed",
			fmt.Sprintf("Step '%s' exited with code %d.", stepErr.Step, stepErr.ExitCode),
			map[string]string{"output": tailLines(stepErr.Output, 20)},
			[]string{"Fix the failing step and rerun: slipway release"},
		)
	}
	return printer.Error("Release failed", err.Error(), nil)
}

// tailLines returns at most n trailing lines of s.
func tailLines(s string, n int) string {
	if s == "" {
		return "(no output)"
	}
	lines := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			lines++
			if lines == n {
				return s[i+1:]
			}
		}
	}
	return s
}
