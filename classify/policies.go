package classify

import (
	"strings"

	"github.com/frugalcloud/sweeper/types"
)

// StoragePolicy flags storage resources whose measured used capacity
// sits strictly below the configured size threshold. Without a capacity
// measurement the policy stays silent.
type StoragePolicy struct{}

func (StoragePolicy) Name() string { return "storage-capacity" }

func (StoragePolicy) Match(r types.Resource) bool { return r.Kind == types.KindStorage }

func (StoragePolicy) Evaluate(in Input) (*types.Finding, error) {
	used, ok := metricAvg(in.Metrics, MetricUsedCapacity)
	if !ok {
		return nil, nil
	}
	if used >= in.Thresholds.StorageUsedGB {
		return nil, nil
	}

	f := newFinding(in, 0.7)
	f.Reasons = ReasonUnderutilised
	f.CurrentSizeGB = used
	switch strings.ToLower(in.Thresholds.StorageAccessTier) {
	case "hot":
		f.Recommendations = RecommendTryCold
	default:
		f.Recommendations = RecommendMerge
	}
	return &f, nil
}

// ComputePolicy averages the utilization metrics that returned data
// (CPU, memory, network) and flags the resource when that average is
// below the configured threshold. Zero available metrics means no
// finding: silence on missing telemetry, not a false positive.
type ComputePolicy struct{}

func (ComputePolicy) Name() string { return "compute-utilization" }

func (ComputePolicy) Match(r types.Resource) bool { return r.Kind == types.KindCompute }

func (ComputePolicy) Evaluate(in Input) (*types.Finding, error) {
	var sum float64
	var n int
	for _, metric := range []string{MetricCPU, MetricMemory, MetricNetwork} {
		if avg, ok := metricAvg(in.Metrics, metric); ok {
			sum += avg
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}

	total := sum / float64(n)
	if total >= in.Thresholds.ComputeAvgPercent {
		return nil, nil
	}

	f := newFinding(in, 0.7)
	f.Reasons = ReasonUnderutilised
	f.Recommendations = RecommendScaleDown
	f.AvgUtilization = total
	return &f, nil
}

// DiskPolicy runs three independent sub-checks over block storage:
// size below quota, not attached to any compute resource, and
// provisioning state not succeeded. Every sub-check that fires
// contributes its own reason and recommendation token.
type DiskPolicy struct{}

func (DiskPolicy) Name() string { return "block-storage" }

func (DiskPolicy) Match(r types.Resource) bool { return r.Kind == types.KindDisk }

func (DiskPolicy) Evaluate(in Input) (*types.Finding, error) {
	r := in.Resource

	var reasons, recs []string
	if r.SizeGB > 0 && r.SizeGB < in.Thresholds.DiskQuotaGB {
		reasons = append(reasons, ReasonUnderutilised)
		recs = append(recs, RecommendScaleDown)
	}
	if !r.Attached {
		reasons = append(reasons, ReasonUnattached)
		recs = append(recs, RecommendAttach)
	}
	if state := strings.ToLower(r.ProvisioningState); state != "" && state != "succeeded" {
		reasons = append(reasons, ReasonUnhealthy)
		recs = append(recs, RecommendInvestigate)
	}
	if len(reasons) == 0 {
		return nil, nil
	}

	f := newFinding(in, 0.8)
	f.Reasons = types.JoinTokens(reasons...)
	f.Recommendations = types.JoinTokens(recs...)
	f.CurrentSizeGB = r.SizeGB
	return &f, nil
}

// databaseHealthyStatuses are the states a database reports while it is
// serving. Anything else marks the instance orphaned.
var databaseHealthyStatuses = map[string]bool{
	"online":    true,
	"succeeded": true,
}

// DatabasePolicy runs two independent sub-checks over managed
// databases: measured used size strictly below the sub-type threshold,
// and a status outside the serving states. Without a size measurement
// the size check stays silent.
type DatabasePolicy struct{}

func (DatabasePolicy) Name() string { return "database-size" }

func (DatabasePolicy) Match(r types.Resource) bool { return r.Kind == types.KindDatabase }

func (DatabasePolicy) Evaluate(in Input) (*types.Finding, error) {
	r := in.Resource

	threshold := in.Thresholds.DatabaseUsedGB
	if v, ok := in.Thresholds.DatabaseUsedGBByType[strings.ToLower(r.SubType)]; ok {
		threshold = v
	}

	var reasons, recs []string
	used, measured := metricAvg(in.Metrics, MetricDatabaseUsedGB)
	if measured && threshold > 0 && used < threshold {
		reasons = append(reasons, ReasonUnderutilised)
		recs = append(recs, RecommendScaleDown)
	}
	if status := strings.ToLower(r.Status); status != "" && !databaseHealthyStatuses[status] {
		reasons = append(reasons, ReasonOrphaned)
		recs = append(recs, RecommendDelete)
	}
	if len(reasons) == 0 {
		return nil, nil
	}

	f := newFinding(in, 0.7)
	f.Reasons = types.JoinTokens(reasons...)
	f.Recommendations = types.JoinTokens(recs...)
	if measured {
		f.CurrentSizeGB = used
	}
	return &f, nil
}

// SubnetPolicy flags address ranges with more free capacity than the
// configured threshold. Default-named ranges are always skipped, as are
// ranges with no address prefix.
type SubnetPolicy struct{}

func (SubnetPolicy) Name() string { return "network-range" }

func (SubnetPolicy) Match(r types.Resource) bool { return r.Kind == types.KindSubnet }

func (SubnetPolicy) Evaluate(in Input) (*types.Finding, error) {
	r := in.Resource
	if strings.Contains(strings.ToLower(r.Name), "default") {
		return nil, nil
	}
	if r.Subnet == nil || r.Subnet.AddressPrefix == "" {
		return nil, nil
	}

	free := r.Subnet.FreePercent()
	if free <= in.Thresholds.SubnetFreePercent {
		return nil, nil
	}

	f := newFinding(in, 0.6)
	f.Reasons = ReasonUnderutilised
	f.Recommendations = RecommendScaleDown
	f.FreePercent = free
	return &f, nil
}
