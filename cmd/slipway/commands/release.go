package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/pipeline"
	"github.com/dyluth/slipway/internal/printer"
)

var (
	releaseDryRun      bool
	releaseSkipRelease bool
	releaseSkipPublish bool
	releaseAllowDirty  bool
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Run the full release pipeline",
	Long: `Run the full release pipeline defined in slipway.yml:

  1. Execute the build steps strictly in order (fail-fast)
  2. Collect and checksum the built artifacts
  3. Create the annotated tag and the hosted release
  4. Upload the artifacts to the package index

The release tag is always derived from the project's declared version.
Credentials are read from the environment (SLIPWAY_RELEASE_TOKEN and
SLIPWAY_INDEX_TOKEN by default).

Use --dry-run to build and collect without tagging, releasing, or publishing.`,
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Build and collect artifacts; publish nothing")
	releaseCmd.Flags().BoolVar(&releaseSkipRelease, "skip-release", false, "Skip the hosted release stage")
	releaseCmd.Flags().BoolVar(&releaseSkipPublish, "skip-publish", false, "Skip the package index stage")
	releaseCmd.Flags().BoolVar(&releaseAllowDirty, "allow-dirty", false, "Permit uncommitted changes in the workspace")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
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

	result, err := engine.Run(ctx, pipeline.Options{
		DryRun:      releaseDryRun,
		SkipRelease: releaseSkipRelease,
		SkipPublish: releaseSkipPublish,
		AllowDirty:  releaseAllowDirty,
	})
	if err != nil {
		return reportRunError(err)
	}

	if releaseDryRun {
		return nil
	}

	printer.Println()
	printer.Success("Released %s %s\n", cfg.Project.Name, result.Version)
	if result.ReleaseURL != "" {
		printer.Info("  Release: %s\n", result.ReleaseURL)
	}
	for _, name := range result.Published {
		printer.Info("  Published: %s\n", name)
	}

	return nil
}
