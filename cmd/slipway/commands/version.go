package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/printer"
	"github.com/dyluth/slipway/internal/version"
)

var (
	versionShowTag bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the project's declared version",
	Long: `Resolve and print the project's declared version using the version source
configured in slipway.yml.

With --tag, prints the release tag derived from the version instead.`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShowTag, "tag", false, "Print the derived release tag instead of the bare version")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	checker := git.NewChecker()
	if err := checker.ValidateGitContext(); err != nil {
		return err
	}

	cfg, err := config.Load(config.DefaultFileName)
	if err != nil {
		return configLoadError(err)
	}

	root, err := checker.GetGitRoot()
	if err != nil {
		return err
	}

	resolved, err := version.Resolve(cfg.Project.Version, root)
	if err != nil {
		return printer.Error(
			"Failed to resolve project version",
			err.Error(),
			[]string{"Check the project.version section of slipway.yml"},
		)
	}

	if versionShowTag {
		tagFormat := config.DefaultTagFormat
		if cfg.Release != nil {
			tagFormat = cfg.Release.TagFormat
		}
		printer.Println(version.FormatTag(tagFormat, resolved))
		return nil
	}

	printer.Println(resolved)
	return nil
}
