package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frugalcloud/sweeper/internal/daemon"
	"github.com/frugalcloud/sweeper/telemetry"
)

var daemonEnvironment string

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scan scheduler",
	Long: `Run Sweeper in daemon mode.

The daemon polls the request store, dispatches each due request exactly
once, scans every environment of the request's owner, and replaces the
per-scope findings snapshot. Completion records dispatch, so a failing
environment never re-fires its request.

Endpoints:
- Prometheus metrics on /metrics
- Health checks on /health, /-/healthy, /-/ready
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  sweeper daemon --config sweeper.yaml
  sweeper daemon --environment staging`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonEnvironment, "environment", "production", "Deployment environment reported to telemetry")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "sweeper",
		ServiceVersion: version,
		Environment:    daemonEnvironment,
		OTELEndpoint:   cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	logger := telemetry.NewLogger("sweeper")

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Dur("poll_interval", cfg.PollInterval).
		Str("metrics_addr", cfg.MetricsAddr).
		Msg("sweeper starting")

	return d.Run(ctx)
}
