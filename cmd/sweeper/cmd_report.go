package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/frugalcloud/sweeper/export"
	"github.com/frugalcloud/sweeper/snapshot"
)

var (
	reportFormat string
	reportOutput string
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest findings per scope",
	Long: `Print the current snapshot: the findings of the latest completed
scan of every scope, with per-scope cost rollups.`,
	Example: `  sweeper report                       # Table on stdout
  sweeper report --format json         # Full JSON export
  sweeper report --output waste.json --format json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "Output format: table, json")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write to file instead of stdout")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snapshots, err := snapshot.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = snapshots.Close() }()

	report, err := export.Build(snapshots, time.Now().UTC())
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if reportOutput != "" {
		file, err := os.Create(reportOutput) // #nosec G304 -- path is intentional user input
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	switch reportFormat {
	case "json":
		return export.WriteJSON(out, report)
	case "table":
		return writeTable(out, report)
	default:
		return fmt.Errorf("invalid output format: %s (must be table or json)", reportFormat)
	}
}

func writeTable(out io.Writer, report export.Report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tRESOURCE\tTYPE\tFINDING\tRECOMMENDATION\tCOST")

	for _, scope := range report.Scopes {
		for _, f := range scope.Findings {
			cost := "unknown"
			if f.TotalCost.Known {
				cost = fmt.Sprintf("%.2f %s", f.TotalCost.Amount, f.Currency)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				scope.Scope, f.ResourceID, f.ResourceType, f.Reasons, f.Recommendations, cost)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, scope := range report.Scopes {
		fmt.Fprintf(out, "\n%s: %d findings, %.2f known cost, %d without cost data (updated %s)",
			scope.Scope, len(scope.Findings), scope.KnownCost, scope.UnknownCostFindings,
			scope.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(out)
	return nil
}
