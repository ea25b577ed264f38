package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the build steps and collect artifacts",
	Long: `Run the configured build steps and collect artifacts, without tagging,
releasing, or publishing anything.

Equivalent to 'slipway release --dry-run' but also permits uncommitted
changes, since nothing leaves the machine.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	checker := git.NewChecker()
	if err := checker.ValidateGitContext(); err != nil {
		return err
	}

	cfg, err := config.Load(config.DefaultFileName)
	if err != nil {
		return configLoadError(err)
	}

	engine, cleanup, err := buildEngine(ctx, checker, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := engine.Run(ctx, pipeline.Options{DryRun: true, AllowDirty: true}); err != nil {
		return reportRunError(err)
	}

	return nil
}
