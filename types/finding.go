package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RequiredTags is the governance tag set every resource is expected to
// carry. Missing keys trigger the tag-completeness policy.
var RequiredTags = []string{
	"ApplicationCode",
	"CIO",
	"CloudProvider",
	"CostCenter",
	"Entity",
	"Environment",
	"Feature",
	"Lab",
	"Owner",
	"Platform",
	"Ticket",
}

// TagSentinel is the value recorded for a governance tag the resource
// does not carry.
const TagSentinel = "na"

// Governance holds the tag values copied onto every finding, each
// defaulted to the "na" sentinel and lowercased.
type Governance struct {
	ApplicationCode string `json:"application_code"`
	CIO             string `json:"cio"`
	CostCenter      string `json:"cost_center"`
	Entity          string `json:"entity"`
	Environment     string `json:"environment"`
	Feature         string `json:"feature"`
	Lab             string `json:"lab"`
	Owner           string `json:"owner"`
	Platform        string `json:"platform"`
	Ticket          string `json:"ticket"`
}

// GovernanceFromTags extracts the governance block from a resource tag
// map, defaulting absent keys to the sentinel.
func GovernanceFromTags(tags map[string]string) Governance {
	get := func(key string) string {
		if v, ok := tags[key]; ok && v != "" {
			return strings.ToLower(v)
		}
		return TagSentinel
	}
	return Governance{
		ApplicationCode: get("ApplicationCode"),
		CIO:             get("CIO"),
		CostCenter:      get("CostCenter"),
		Entity:          get("Entity"),
		Environment:     get("Environment"),
		Feature:         get("Feature"),
		Lab:             get("Lab"),
		Owner:           get("Owner"),
		Platform:        get("Platform"),
		Ticket:          get("Ticket"),
	}
}

// CostAmount is a cost figure that distinguishes "no matching cost row"
// from an actual zero. It marshals to a JSON number when known and to
// the string "unknown" otherwise.
type CostAmount struct {
	Amount float64
	Known  bool
}

// KnownCost wraps an amount joined from a cost export row.
func KnownCost(amount float64) CostAmount {
	return CostAmount{Amount: amount, Known: true}
}

// UnknownCost is the sentinel for resources with no cost-export match.
func UnknownCost() CostAmount {
	return CostAmount{}
}

func (c CostAmount) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return json.Marshal("unknown")
	}
	return json.Marshal(c.Amount)
}

func (c *CostAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unknown" {
			return fmt.Errorf("invalid cost sentinel %q", s)
		}
		*c = CostAmount{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = CostAmount{Amount: f, Known: true}
	return nil
}

// Finding is one classified-resource output record. ResourceID is the
// normalized identifier and is unique within one scan's output after
// merging.
type Finding struct {
	ResourceID      string     `json:"resource_id"`
	Provider        string     `json:"provider"`
	AccountUnit     string     `json:"account_unit"`
	ScanOwner       string     `json:"scan_owner"`
	Governance      Governance `json:"governance"`
	ResourceType    string     `json:"resource_type"`
	SubResourceType string     `json:"sub_resource_type"`
	ResourceName    string     `json:"resource_name"`
	Region          string     `json:"region"`
	TotalCost       CostAmount `json:"total_cost"`
	Currency        string     `json:"currency"`
	Reasons         string     `json:"finding"`        // semicolon-joined token set
	Recommendations string     `json:"recommendation"` // same union rule
	MissingTags     string     `json:"missing_tags,omitempty"`
	CurrentSizeGB   float64    `json:"current_size_gb,omitempty"`
	AvgUtilization  float64    `json:"avg_utilization,omitempty"`
	FreePercent     float64    `json:"free_percent,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
	Confidence      float64    `json:"confidence"`
}

// Scope identifies the snapshot a finding set replaces.
type Scope struct {
	Provider    string `json:"provider"`
	AccountUnit string `json:"account_unit"`
	Owner       string `json:"owner"`
}

// Key returns a stable composite key for the scope. Fields never contain
// the separator.
func (s Scope) Key() string {
	return s.Provider + "|" + s.AccountUnit + "|" + s.Owner
}

func (s Scope) String() string {
	return s.Key()
}

// ParseScope parses a composite scope key back into its fields.
func ParseScope(key string) (Scope, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 {
		return Scope{}, fmt.Errorf("malformed scope key %q", key)
	}
	return Scope{Provider: parts[0], AccountUnit: parts[1], Owner: parts[2]}, nil
}

// TokenSeparator joins multi-valued finding fields.
const TokenSeparator = "; "

// ParseTokens splits a semicolon-joined field into its distinct tokens.
// Empty tokens are dropped.
func ParseTokens(joined string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, part := range strings.Split(joined, ";") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// JoinTokens unions any number of joined fields into one deterministic
// semicolon-joined set. Sorting makes the union order-independent.
func JoinTokens(joined ...string) string {
	seen := make(map[string]struct{})
	for _, j := range joined {
		for _, token := range ParseTokens(j) {
			seen[token] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(seen))
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, TokenSeparator)
}
