package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/types"
)

func orphanTestInput(rels map[types.RelationKind][]types.Relation, live map[string]bool) OrphanInput {
	return OrphanInput{
		Scope:     types.Scope{Provider: "providera", AccountUnit: "acct-1", Owner: "team-a"},
		Relations: rels,
		LiveRefs:  live,
		Now:       time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestClassifyOrphans(t *testing.T) {
	c := New(nil)

	t.Run("security group with nothing attached is orphaned", func(t *testing.T) {
		in := orphanTestInput(map[types.RelationKind][]types.Relation{
			types.RelationSecurityGroups: {
				{Kind: types.RelationSecurityGroups, ID: "sg-empty", Name: "sg-empty"},
				{Kind: types.RelationSecurityGroups, ID: "sg-used", Name: "sg-used", AttachmentCount: 2},
				{Kind: types.RelationSecurityGroups, ID: "sg-rules", Name: "sg-rules", RuleCount: 3},
			},
		}, nil)

		out := c.ClassifyOrphans(in)
		require.Len(t, out, 1)
		assert.Equal(t, "sg-empty", out[0].ResourceID)
		assert.Equal(t, ReasonOrphaned, out[0].Reasons)
		assert.Equal(t, RecommendDelete, out[0].Recommendations)
		assert.Equal(t, "SecurityGroup", out[0].SubResourceType)
		assert.InDelta(t, 0.9, out[0].Confidence, 1e-9)
	})

	t.Run("detached disk and interface", func(t *testing.T) {
		in := orphanTestInput(map[types.RelationKind][]types.Relation{
			types.RelationDisks: {
				{Kind: types.RelationDisks, ID: "Disk/D1/", Name: "d1", SizeGB: 64},
				{Kind: types.RelationDisks, ID: "disk/d2", Name: "d2", AttachedTo: "vm-1"},
			},
			types.RelationInterfaces: {
				{Kind: types.RelationInterfaces, ID: "nic/n1", Name: "n1"},
			},
		}, nil)

		out := c.ClassifyOrphans(in)
		require.Len(t, out, 2)
		assert.Equal(t, "disk/d1", out[0].ResourceID)
		assert.Equal(t, 64.0, out[0].CurrentSizeGB)
		assert.Equal(t, "nic/n1", out[1].ResourceID)
	})

	t.Run("unbound public address", func(t *testing.T) {
		in := orphanTestInput(map[types.RelationKind][]types.Relation{
			types.RelationPublicIPs: {
				{Kind: types.RelationPublicIPs, ID: "ip/p1", Name: "p1", Bound: false},
				{Kind: types.RelationPublicIPs, ID: "ip/p2", Name: "p2", Bound: true},
			},
		}, nil)

		out := c.ClassifyOrphans(in)
		require.Len(t, out, 1)
		assert.Equal(t, "ip/p1", out[0].ResourceID)
	})

	t.Run("flow log referencing a dead object", func(t *testing.T) {
		in := orphanTestInput(map[types.RelationKind][]types.Relation{
			types.RelationFlowLogs: {
				{Kind: types.RelationFlowLogs, ID: "fl/f1", Name: "f1", RefID: "SG/Gone/"},
				{Kind: types.RelationFlowLogs, ID: "fl/f2", Name: "f2", RefID: "sg/alive"},
				{Kind: types.RelationFlowLogs, ID: "fl/f3", Name: "f3"},
			},
		}, map[string]bool{"sg/alive": true})

		out := c.ClassifyOrphans(in)
		require.Len(t, out, 1)
		assert.Equal(t, "fl/f1", out[0].ResourceID)
	})

	t.Run("missing cost table yields unknown cost", func(t *testing.T) {
		in := orphanTestInput(map[types.RelationKind][]types.Relation{
			types.RelationDisks: {{Kind: types.RelationDisks, ID: "disk/d9", Name: "d9"}},
		}, nil)

		out := c.ClassifyOrphans(in)
		require.Len(t, out, 1)
		assert.False(t, out[0].TotalCost.Known)
	})
}
