package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cliVersion string
	cliCommit  string
	cliDate    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Slipway - release pipeline runner",
	Long: `Slipway builds, tags, releases, and publishes a package from a declarative
pipeline defined in slipway.yml.

A release run executes the configured build steps strictly in order (the
first failure aborts everything after it), collects and checksums the built
artifacts, creates a tagged release on the hosting platform, and uploads the
artifacts to the package index. Credentials are only ever read from the
environment. With a configured ledger, every run is recorded in Redis and
browsable with 'slipway runs'.`,
	Version:       cliVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	cliVersion = v
	cliCommit = c
	cliDate = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
