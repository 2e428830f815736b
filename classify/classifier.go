// Package classify turns normalized resource descriptors into waste
// findings. Primary policies run first-match per resource; the
// tag-completeness fallback runs only when no primary policy claimed
// the resource; orphan policies run as an independent second pass over
// relation sets.
package classify

import (
	"context"
	"time"

	"github.com/frugalcloud/sweeper/costs"
	"github.com/frugalcloud/sweeper/types"
)

// Finding reason tokens. These are wire contract for dashboard readers.
const (
	ReasonUnderutilised = "underutilised"
	ReasonUnattached    = "unattached"
	ReasonUnhealthy     = "unhealthy"
	ReasonUntagged      = "untagged"
	ReasonOrphaned      = "orphaned"
)

// Recommendation tokens.
const (
	RecommendMerge       = "merge"
	RecommendTryCold     = "try cold"
	RecommendScaleDown   = "scale down"
	RecommendAttach      = "attach or delete"
	RecommendInvestigate = "investigate state"
	RecommendAddTag      = "add tag"
	RecommendDelete      = "delete"
)

// Metric names a gateway is asked for. Each is optional; policies
// average only over metrics that returned data.
const (
	MetricCPU            = "cpu"
	MetricMemory         = "memory"
	MetricNetwork        = "network"
	MetricUsedCapacity   = "used_capacity_gb"
	MetricDatabaseUsedGB = "database_used_gb"
)

// Thresholds are the per-owner policy knobs. Zero values are replaced
// by the hard defaults at load time, never at evaluation time.
type Thresholds struct {
	StorageUsedGB     float64 `json:"storage_used_gb" yaml:"storage_used_gb"`
	StorageAccessTier string  `json:"storage_access_tier" yaml:"storage_access_tier"`
	ComputeAvgPercent float64 `json:"compute_avg_percent" yaml:"compute_avg_percent"`
	DiskQuotaGB       float64 `json:"disk_quota_gb" yaml:"disk_quota_gb"`
	SubnetFreePercent float64 `json:"subnet_free_percent" yaml:"subnet_free_percent"`
	DatabaseUsedGB    float64 `json:"database_used_gb" yaml:"database_used_gb"`

	// DatabaseUsedGBByType overrides DatabaseUsedGB per database
	// sub-type (lowercased: sql, mysql, postgres, mariadb, cosmos,
	// redis, synapse, mongo).
	DatabaseUsedGBByType map[string]float64 `json:"database_used_gb_by_type,omitempty" yaml:"database_used_gb_by_type,omitempty"`
}

// DefaultThresholds are applied when an owner has no stored policy
// configuration, or field-wise where a stored value is absent.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StorageUsedGB:     1,
		ComputeAvgPercent: 20,
		DiskQuotaGB:       100,
		SubnetFreePercent: 90,
		DatabaseUsedGB:    1,
	}
}

// Merge fills zero fields of t from the defaults.
func (t Thresholds) Merge(defaults Thresholds) Thresholds {
	if t.StorageUsedGB == 0 {
		t.StorageUsedGB = defaults.StorageUsedGB
	}
	if t.StorageAccessTier == "" {
		t.StorageAccessTier = defaults.StorageAccessTier
	}
	if t.ComputeAvgPercent == 0 {
		t.ComputeAvgPercent = defaults.ComputeAvgPercent
	}
	if t.DiskQuotaGB == 0 {
		t.DiskQuotaGB = defaults.DiskQuotaGB
	}
	if t.SubnetFreePercent == 0 {
		t.SubnetFreePercent = defaults.SubnetFreePercent
	}
	if t.DatabaseUsedGB == 0 {
		t.DatabaseUsedGB = defaults.DatabaseUsedGB
	}
	if t.DatabaseUsedGBByType == nil {
		t.DatabaseUsedGBByType = defaults.DatabaseUsedGBByType
	}
	return t
}

// Input is everything one policy evaluation may consult. Policies are
// pure functions of this value.
type Input struct {
	Resource   types.Resource
	Key        string // normalized identifier
	Owner      string
	Cost       types.CostAmount
	Metrics    map[string][]float64 // samples per metric; absent key means no data
	Thresholds Thresholds
	Now        time.Time
}

// Policy examines one resource and emits zero or one finding. Match
// reports whether the policy claims the resource kind; a claimed
// resource never falls through to the tag-completeness check, even when
// Evaluate emits nothing.
type Policy interface {
	Name() string
	Match(r types.Resource) bool
	Evaluate(in Input) (*types.Finding, error)
}

// Classifier chains the primary policies and the tag fallback.
type Classifier struct {
	primaries []Policy
	tags      *TagPolicy
}

// New builds a classifier with the standard policy order: storage
// capacity, compute utilization, block storage, database, subnet range.
func New(tags *TagPolicy) *Classifier {
	return &Classifier{
		primaries: []Policy{
			StoragePolicy{},
			ComputePolicy{},
			DiskPolicy{},
			DatabasePolicy{},
			SubnetPolicy{},
		},
		tags: tags,
	}
}

// Classify evaluates one resource. First matching primary policy wins;
// the tag-completeness fallback runs only when no primary matched.
// A nil finding with nil error means the resource is unremarkable.
func (c *Classifier) Classify(ctx context.Context, in Input) (*types.Finding, error) {
	for _, p := range c.primaries {
		if !p.Match(in.Resource) {
			continue
		}
		return p.Evaluate(in)
	}
	if c.tags == nil {
		return nil, nil
	}
	return c.tags.Evaluate(ctx, in)
}

// newFinding assembles the shared finding skeleton for a resource.
func newFinding(in Input, confidence float64) types.Finding {
	r := in.Resource
	currency := r.Tag("Currency")
	if currency == "" {
		currency = "USD"
	}
	return types.Finding{
		ResourceID:      in.Key,
		Provider:        r.Provider,
		AccountUnit:     r.AccountUnit,
		ScanOwner:       in.Owner,
		Governance:      types.GovernanceFromTags(r.Tags),
		ResourceType:    r.Type,
		SubResourceType: r.SubType,
		ResourceName:    r.Name,
		Region:          region(r.Region),
		TotalCost:       in.Cost,
		Currency:        currency,
		Timestamp:       in.Now,
		Confidence:      confidence,
	}
}

func region(r string) string {
	if r == "" {
		return types.TagSentinel
	}
	return r
}

// metricAvg averages the samples for one metric. ok is false when the
// metric returned no data at all.
func metricAvg(metrics map[string][]float64, name string) (avg float64, ok bool) {
	samples := metrics[name]
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples)), true
}

// CostTable is the subset of the cost join table policies consume.
type CostTable interface {
	Lookup(key string) types.CostAmount
}

var _ CostTable = (*costs.Table)(nil)
