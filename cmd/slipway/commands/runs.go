package commands

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/slipway/internal/config"
	"github.com/dyluth/slipway/internal/git"
	"github.com/dyluth/slipway/internal/printer"
	"github.com/dyluth/slipway/internal/runs"
	"github.com/dyluth/slipway/internal/timespec"
	"github.com/dyluth/slipway/pkg/ledger"
)

var (
	runsOutput string
	runsSince  string
	runsUntil  string
	runsStatus string
	runsID     string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded release runs",
	Long: `List release runs recorded in the run ledger, newest first.

Requires a configured ledger (the ledger section in slipway.yml, or
SLIPWAY_REDIS_ADDR).

Filters:
  --since/--until  Time range ('1h30m', '2026-08-25', or RFC3339)
  --status         running, succeeded, or failed

Use --id to show one run in full, including step results and artifacts.`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", "default", "Output format: default or jsonl")
	runsCmd.Flags().StringVar(&runsSince, "since", "", "Only runs started after this time")
	runsCmd.Flags().StringVar(&runsUntil, "until", "", "Only runs started before this time")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Only runs with this status")
	runsCmd.Flags().StringVar(&runsID, "id", "", "Show a single run in full")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	checker := git.NewChecker()
	if err := checker.ValidateGitContext(); err != nil {
		return err
	}

	cfg, err := config.Load(config.DefaultFileName)
	if err != nil {
		return configLoadError(err)
	}

	envCfg, err := config.LoadEnv()
	if err != nil {
		return err
	}

	addr := envCfg.LedgerAddr(cfg.Ledger)
	if addr == "" {
		return printer.Error(
			"Run ledger not configured",
			"'slipway runs' reads history from Redis, but no ledger is configured for this project.",
			[]string{
				"Add a ledger section to slipway.yml (ledger: { addr: localhost:6379 })",
				"Set SLIPWAY_REDIS_ADDR in the environment",
			},
		)
	}

	db := 0
	if cfg.Ledger != nil {
		db = cfg.Ledger.DB
	}

	client, err := ledger.NewClient(&redis.Options{Addr: addr, DB: db}, cfg.Project.Name)
	if err != nil {
		return err
	}
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return printer.ErrorWithContext(
			"Run ledger unreachable",
			"Could not connect to the configured Redis server.",
			map[string]string{"address": addr},
			[]string{"Check that Redis is running and reachable, then retry"},
		)
	}

	// Single-run detail mode
	if runsID != "" {
		return runs.ShowRun(ctx, client, runsID, os.Stdout)
	}

	sinceMS, untilMS, err := timespec.ParseRange(runsSince, runsUntil)
	if err != nil {
		return err
	}

	filters := &runs.FilterCriteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
	}
	if runsStatus != "" {
		status := ledger.RunStatus(runsStatus)
		if err := status.Validate(); err != nil {
			return printer.Error(
				"Invalid --status value",
				err.Error(),
				[]string{"Valid statuses: running, succeeded, failed"},
			)
		}
		filters.Status = status
	}

	return runs.ListRuns(ctx, client, runs.OutputFormat(runsOutput), filters, os.Stdout)
}
