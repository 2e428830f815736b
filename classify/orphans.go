package classify

import (
	"time"

	"github.com/frugalcloud/sweeper/normalize"
	"github.com/frugalcloud/sweeper/types"
)

// OrphanInput is the second classification pass: relation sets fetched
// once per scan, plus the set of live object identifiers dangling
// references are checked against.
type OrphanInput struct {
	Scope     types.Scope
	Relations map[types.RelationKind][]types.Relation
	LiveRefs  map[string]bool // normalized ids of objects that still exist
	Costs     CostTable
	Now       time.Time
}

// ClassifyOrphans emits one orphaned finding per relation object with
// no live consumer. It is independent of the primary policies; merge
// consolidates overlaps afterwards.
func (c *Classifier) ClassifyOrphans(in OrphanInput) []types.Finding {
	var findings []types.Finding

	emit := func(rel types.Relation, resType, subType string) {
		findings = append(findings, orphanFinding(in, rel, resType, subType))
	}

	for _, rel := range in.Relations[types.RelationDisks] {
		if rel.AttachedTo == "" {
			emit(rel, "Storage", "Disk")
		}
	}
	for _, rel := range in.Relations[types.RelationInterfaces] {
		if rel.AttachedTo == "" {
			emit(rel, "Network", "Interface")
		}
	}
	for _, rel := range in.Relations[types.RelationPublicIPs] {
		if !rel.Bound {
			emit(rel, "Network", "PublicIP")
		}
	}
	for _, rel := range in.Relations[types.RelationSecurityGroups] {
		if rel.AttachmentCount == 0 && rel.SubnetBindings == 0 && rel.RuleCount == 0 {
			emit(rel, "Network", "SecurityGroup")
		}
	}
	for _, rel := range in.Relations[types.RelationFlowLogs] {
		if rel.RefID != "" && !in.LiveRefs[normalize.Key(rel.RefID)] {
			emit(rel, "Network", "FlowLog")
		}
	}

	return findings
}

func orphanFinding(in OrphanInput, rel types.Relation, resType, subType string) types.Finding {
	key := normalize.Key(rel.ID)

	cost := types.UnknownCost()
	if in.Costs != nil {
		cost = in.Costs.Lookup(key)
	}

	currency := rel.Tags["Currency"]
	if currency == "" {
		currency = "USD"
	}

	return types.Finding{
		ResourceID:      key,
		Provider:        in.Scope.Provider,
		AccountUnit:     in.Scope.AccountUnit,
		ScanOwner:       in.Scope.Owner,
		Governance:      types.GovernanceFromTags(rel.Tags),
		ResourceType:    resType,
		SubResourceType: subType,
		ResourceName:    rel.Name,
		Region:          region(rel.Region),
		TotalCost:       cost,
		Currency:        currency,
		Reasons:         ReasonOrphaned,
		Recommendations: RecommendDelete,
		CurrentSizeGB:   rel.SizeGB,
		Timestamp:       in.Now,
		Confidence:      0.9,
	}
}
