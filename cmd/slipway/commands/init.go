package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/scaffold"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new slipway project",
	Long: `Initialize a new slipway project with an example release pipeline.

Creates:
  • slipway.yml - Release pipeline configuration file

This command must be run from the root of a Git repository.

Use --force to reinitialize an existing project (WARNING: replaces existing configuration).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Force reinitialization (replaces existing slipway.yml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	// Validate Git context first
	checker := git.NewChecker()
	if err := checker.ValidateGitContext(); err != nil {
		return err
	}

	// Check for existing config (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()

	return nil
}
