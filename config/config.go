// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/frugalcloud/sweeper/classify"
)

// Config is the daemon configuration.
type Config struct {
	Version string `yaml:"version"`

	// DataDir holds the bbolt databases.
	DataDir string `yaml:"data_dir"`

	// PollInterval is how often due requests are claimed.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LookbackDays is the shared window for the cost join and
	// utilization metrics.
	LookbackDays int `yaml:"lookback_days"`

	// MetricsAddr serves /metrics and health endpoints.
	MetricsAddr string `yaml:"metrics_addr"`

	// ExportDir enables the per-scope JSON dump written before each
	// snapshot replace. Empty disables the export.
	ExportDir string `yaml:"export_dir,omitempty"`

	Telemetry Telemetry `yaml:"telemetry,omitempty"`

	// Thresholds overrides the built-in policy defaults globally.
	// Per-owner references from the directory still win over these.
	Thresholds classify.Thresholds `yaml:"thresholds,omitempty"`
}

// Telemetry configures the OTLP export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:      "v1",
		DataDir:      "data",
		PollInterval: 30 * time.Second,
		LookbackDays: 30,
		MetricsAddr:  ":9090",
	}
}

// Load reads and validates a configuration file. Absent optional
// fields fall back to the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive")
	}
	return nil
}
