package types

import "time"

// RequestStatus is the lifecycle state of a scan request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusCompleted RequestStatus = "Completed"
)

// ScanRequest is a persisted job describing when to run a scan for an
// owner. Created externally; the scheduler only moves it Pending to
// Completed. Requests are never deleted by the engine.
type ScanRequest struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Status      RequestStatus `json:"status"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
}

// Due reports whether the request should be claimed at now. There is no
// upper bound: a request due days ago is still claimed.
func (r ScanRequest) Due(now time.Time) bool {
	return r.Status == StatusPending && !r.ScheduledAt.After(now)
}

// Environment is one configured cloud environment for an owner, as
// returned by the environment directory.
type Environment struct {
	Provider        string `json:"provider"`
	AccountUnit     string `json:"account_unit"`
	CredentialsRef  string `json:"credentials_ref"`
	PolicyConfigRef string `json:"policy_config_ref,omitempty"`
}

// Scope returns the snapshot scope this environment's scans replace.
func (e Environment) Scope(owner string) Scope {
	return Scope{Provider: e.Provider, AccountUnit: e.AccountUnit, Owner: owner}
}

// Credentials is the resolved secret material for one environment. The
// engine treats it as opaque; gateways pick the fields they need.
type Credentials struct {
	TenantID       string `json:"tenant_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	BillingAccount string `json:"billing_account,omitempty"`
	Region         string `json:"region,omitempty"`
	AccessKeyID    string `json:"access_key_id,omitempty"`
	SecretKey      string `json:"secret_key,omitempty"`
	SessionToken   string `json:"session_token,omitempty"`
}
