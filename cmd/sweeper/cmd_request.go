package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frugalcloud/sweeper/jobstore"
	"github.com/frugalcloud/sweeper/types"
)

var (
	requestOwner string
	requestAt    string
)

// requestCmd represents the request command
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "File a scan request for an owner",
	Long: `File a scan request. The daemon claims it on its next poll at or
after the scheduled time and scans every environment of the owner.
There is no upper bound on lateness: a request due days ago is still
claimed.`,
	Example: `  sweeper request --owner team-a                          # Scan as soon as possible
  sweeper request --owner team-a --at 2026-03-11T02:00:00Z  # Schedule for later`,
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)

	requestCmd.Flags().StringVar(&requestOwner, "owner", "", "Owner whose environments to scan (required)")
	requestCmd.Flags().StringVar(&requestAt, "at", "", "RFC3339 time to schedule the scan (default: now)")
	_ = requestCmd.MarkFlagRequired("owner")
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	at := time.Now().UTC()
	if requestAt != "" {
		at, err = time.Parse(time.RFC3339, requestAt)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
	}

	jobs, err := jobstore.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = jobs.Close() }()

	req, err := jobs.Create(types.ScanRequest{Owner: requestOwner, ScheduledAt: at})
	if err != nil {
		return err
	}

	fmt.Printf("created request %s for %s, scheduled at %s\n",
		req.ID, req.Owner, req.ScheduledAt.Format(time.RFC3339))
	return nil
}
