package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frugalcloud/sweeper/config"
)

var (
	version = "0.1.0"
	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "sweeper",
		Short: "Scheduled cloud waste scanner",
		Long: `Sweeper - Scheduled Cloud Waste Scanner

Owners file scan requests; the engine claims due requests, scans every
cloud environment of the owner, classifies resources against waste
policies, joins in billing costs, and atomically replaces one findings
snapshot per scope.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Sweeper {{.Version}} - Scheduled Cloud Waste Scanner
`)
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML configuration file")
}

// loadConfig reads the configured file, or the built-in defaults when
// no file is given.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}
