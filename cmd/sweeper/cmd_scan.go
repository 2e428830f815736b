package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/directory"
	"github.com/frugalcloud/sweeper/export"
	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/scheduler"
	"github.com/frugalcloud/sweeper/snapshot"
	"github.com/frugalcloud/sweeper/telemetry"
)

var scanOwner string

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan an owner's environments once",
	Long: `Scan every environment of an owner immediately, bypassing the
request store. Each scoped snapshot is replaced on success and left
untouched on failure, exactly as in daemon mode.`,
	Example: `  sweeper scan --owner team-a
  sweeper scan --owner team-a --config sweeper.yaml`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanOwner, "owner", "", "Owner whose environments to scan (required)")
	_ = scanCmd.MarkFlagRequired("owner")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := telemetry.NewLogger("sweeper")

	dir, err := directory.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()
	dir.SetDefaultThresholds(cfg.Thresholds)

	snapshots, err := snapshot.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = snapshots.Close() }()

	tags, err := classify.NewTagPolicy(ctx)
	if err != nil {
		return err
	}
	scanner := scheduler.NewScanner(providers.Open, classify.New(tags), snapshots, logger, cfg.LookbackDays)
	if cfg.ExportDir != "" {
		sink, err := export.NewFileSink(cfg.ExportDir)
		if err != nil {
			return err
		}
		scanner.SetExporter(sink)
	}

	envs, err := dir.Environments(scanOwner)
	if err != nil {
		return err
	}
	if len(envs) == 0 {
		return fmt.Errorf("owner %q has no environments, run onboard first", scanOwner)
	}

	now := time.Now().UTC()
	failed := 0
	for _, env := range envs {
		creds, err := dir.Credentials(env.CredentialsRef)
		if err != nil {
			logger.Error().Err(err).Str("account_unit", env.AccountUnit).
				Msg("credential resolution failed, skipping environment")
			failed++
			continue
		}
		thresholds, err := dir.Thresholds(env.PolicyConfigRef)
		if err != nil {
			logger.Warn().Err(err).Msg("threshold lookup failed, using defaults")
			thresholds = classify.DefaultThresholds()
		}

		summary, err := scanner.Scan(ctx, scanOwner, env, creds, thresholds, now)
		if err != nil {
			logger.Error().Err(err).Str("scope", summary.Scope.Key()).
				Msg("scan failed, previous snapshot preserved")
			failed++
			continue
		}

		fmt.Printf("scanned %s: %d resources, %d findings, %d cost-matched\n",
			summary.Scope, summary.Resources, summary.Findings, summary.CostMatched)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d environments failed", failed, len(envs))
	}
	return nil
}
