package scaffold

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// CheckExisting returns an error if a slipway.yml already exists.
// Used by `slipway init` unless --force is specified.
func CheckExisting() error {
	if _, err := os.Stat(config.DefaultFileName); err == nil {
		return fmt.Errorf("%s already exists\n\nThis project is already initialized.\n\nUse 'slipway init --force' to overwrite the existing configuration", config.DefaultFileName)
	}
	return nil
}

// Initialize creates the slipway project configuration.
// If force is true, any existing slipway.yml is replaced.
func Initialize(force bool) error {
	if force {
		if _, err := os.Stat(config.DefaultFileName); err == nil {
			printer.Warning("Removing existing %s...\n", config.DefaultFileName)
			if err := os.Remove(config.DefaultFileName); err != nil {
				return fmt.Errorf("failed to remove %s: %w", config.DefaultFileName, err)
			}
		}
	}

	content, err := templatesFS.ReadFile("templates/slipway.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read slipway.yml template: %w", err)
	}

	if err := os.WriteFile(config.DefaultFileName, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.DefaultFileName, err)
	}

	return validateCreatedConfig()
}

// validateCreatedConfig parses the file we just wrote.
// Catches template drift: the scaffold must always produce a loadable config.
func validateCreatedConfig() error {
	data, err := os.ReadFile(config.DefaultFileName)
	if err != nil {
		return fmt.Errorf("failed to read created config: %w", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("created config is not valid YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("created config failed validation: %w", err)
	}

	return nil
}

// PrintSuccess prints the post-init guidance.
func PrintSuccess() {
	printer.Success("Created %s\n", config.DefaultFileName)
	printer.Println()
	printer.Info("Next steps:\n")
	printer.Info("  1. Edit %s: set your project name, version source, and steps\n", config.DefaultFileName)
	printer.Info("  2. Export credentials: SLIPWAY_RELEASE_TOKEN and SLIPWAY_INDEX_TOKEN\n")
	printer.Info("  3. Try a build without publishing: slipway release --dry-run\n")
}
