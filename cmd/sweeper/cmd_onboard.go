package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/directory"
	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/types"
)

var onboardFile string

// onboardCmd represents the onboard command
var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Register an owner's environments and credentials",
	Long: `Register an owner in the environment directory from a YAML file.

The file names the owner, the cloud environments to scan, the
credential material the environments reference, and optional policy
threshold sets:

  owner: team-a
  environments:
    - provider: azure
      account_unit: sub-prod-1
      credentials_ref: azure-prod
      policy_config_ref: strict
  credentials:
    azure-prod:
      tenant_id: ...
      client_id: ...
      client_secret: ...
  thresholds:
    strict:
      compute_avg_percent: 40`,
	Example: `  sweeper onboard --file team-a.yaml`,
	RunE: runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)

	onboardCmd.Flags().StringVarP(&onboardFile, "file", "f", "", "Owner definition file (required)")
	_ = onboardCmd.MarkFlagRequired("file")
}

// onboardSpec mirrors the directory records with YAML field names.
type onboardSpec struct {
	Owner        string                         `yaml:"owner"`
	Environments []onboardEnv                   `yaml:"environments"`
	Credentials  map[string]onboardCreds        `yaml:"credentials"`
	Thresholds   map[string]classify.Thresholds `yaml:"thresholds"`
}

type onboardEnv struct {
	Provider        string `yaml:"provider"`
	AccountUnit     string `yaml:"account_unit"`
	CredentialsRef  string `yaml:"credentials_ref"`
	PolicyConfigRef string `yaml:"policy_config_ref"`
}

type onboardCreds struct {
	TenantID       string `yaml:"tenant_id"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	ProjectID      string `yaml:"project_id"`
	BillingAccount string `yaml:"billing_account"`
	Region         string `yaml:"region"`
	AccessKeyID    string `yaml:"access_key_id"`
	SecretKey      string `yaml:"secret_key"`
	SessionToken   string `yaml:"session_token"`
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec, err := loadOnboardSpec(onboardFile)
	if err != nil {
		return err
	}

	dir, err := directory.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	envs := make([]types.Environment, 0, len(spec.Environments))
	for _, e := range spec.Environments {
		envs = append(envs, types.Environment{
			Provider:        e.Provider,
			AccountUnit:     e.AccountUnit,
			CredentialsRef:  e.CredentialsRef,
			PolicyConfigRef: e.PolicyConfigRef,
		})
	}
	if err := dir.PutEnvironments(spec.Owner, envs); err != nil {
		return err
	}

	for ref, c := range spec.Credentials {
		creds := types.Credentials{
			TenantID:       c.TenantID,
			ClientID:       c.ClientID,
			ClientSecret:   c.ClientSecret,
			ProjectID:      c.ProjectID,
			BillingAccount: c.BillingAccount,
			Region:         c.Region,
			AccessKeyID:    c.AccessKeyID,
			SecretKey:      c.SecretKey,
			SessionToken:   c.SessionToken,
		}
		if err := dir.PutCredentials(ref, creds); err != nil {
			return err
		}
	}

	for ref, t := range spec.Thresholds {
		if err := dir.PutThresholds(ref, t); err != nil {
			return err
		}
	}

	fmt.Printf("onboarded %s: %d environments, %d credential sets, %d threshold sets\n",
		spec.Owner, len(spec.Environments), len(spec.Credentials), len(spec.Thresholds))
	return nil
}

func loadOnboardSpec(path string) (*onboardSpec, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, err
	}

	var spec onboardSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if spec.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	known := providers.Names()
	for _, e := range spec.Environments {
		if e.Provider == "" || e.AccountUnit == "" || e.CredentialsRef == "" {
			return nil, fmt.Errorf("environment needs provider, account_unit and credentials_ref")
		}
		if !containsString(known, e.Provider) {
			return nil, fmt.Errorf("unknown provider %q (have: %v)", e.Provider, known)
		}
		if _, ok := spec.Credentials[e.CredentialsRef]; !ok {
			return nil, fmt.Errorf("environment %s/%s references undefined credentials %q",
				e.Provider, e.AccountUnit, e.CredentialsRef)
		}
	}
	return &spec, nil
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
