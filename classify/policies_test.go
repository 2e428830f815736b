package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/types"
)

func testInput(r types.Resource) Input {
	return Input{
		Resource:   r,
		Key:        r.ID,
		Owner:      "team-a",
		Cost:       types.KnownCost(12.5),
		Metrics:    map[string][]float64{},
		Thresholds: DefaultThresholds(),
		Now:        time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestStoragePolicy(t *testing.T) {
	base := types.Resource{ID: "acct/storage/s1", Kind: types.KindStorage, Type: "Storage", Name: "s1"}

	t.Run("missing telemetry stays silent", func(t *testing.T) {
		in := testInput(base)
		f, err := StoragePolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("usage at threshold is not flagged", func(t *testing.T) {
		in := testInput(base)
		in.Thresholds.StorageUsedGB = 1
		in.Metrics[MetricUsedCapacity] = []float64{1.0}
		f, err := StoragePolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("usage below threshold is flagged", func(t *testing.T) {
		in := testInput(base)
		in.Metrics[MetricUsedCapacity] = []float64{0.2, 0.4}
		f, err := StoragePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, ReasonUnderutilised, f.Reasons)
		assert.Equal(t, RecommendMerge, f.Recommendations)
		assert.InDelta(t, 0.3, f.CurrentSizeGB, 1e-9)
	})

	t.Run("hot tier recommends cold", func(t *testing.T) {
		in := testInput(base)
		in.Thresholds.StorageAccessTier = "Hot"
		in.Metrics[MetricUsedCapacity] = []float64{0.1}
		f, err := StoragePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, RecommendTryCold, f.Recommendations)
	})
}

func TestComputePolicy(t *testing.T) {
	base := types.Resource{ID: "acct/vm/v1", Kind: types.KindCompute, Type: "Compute", Name: "v1"}

	t.Run("no metrics means no finding", func(t *testing.T) {
		in := testInput(base)
		f, err := ComputePolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("averages only metrics with data", func(t *testing.T) {
		in := testInput(base)
		in.Metrics[MetricCPU] = []float64{10}
		in.Metrics[MetricMemory] = []float64{20}
		// network absent, divisor is 2 not 3
		f, err := ComputePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.InDelta(t, 15, f.AvgUtilization, 1e-9)
		assert.Equal(t, ReasonUnderutilised, f.Reasons)
		assert.Equal(t, RecommendScaleDown, f.Recommendations)
	})

	t.Run("average at threshold is not flagged", func(t *testing.T) {
		in := testInput(base)
		in.Metrics[MetricCPU] = []float64{20}
		f, err := ComputePolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestDiskPolicy(t *testing.T) {
	t.Run("healthy attached large disk is clean", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "acct/disk/d1", Kind: types.KindDisk,
			SizeGB: 512, Attached: true, ProvisioningState: "Succeeded",
		})
		f, err := DiskPolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("multiple sub-checks yield one finding with joined tokens", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "acct/disk/d2", Kind: types.KindDisk,
			SizeGB: 32, Attached: false, ProvisioningState: "Failed",
		})
		f, err := DiskPolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.ElementsMatch(t,
			[]string{ReasonUnderutilised, ReasonUnattached, ReasonUnhealthy},
			types.ParseTokens(f.Reasons))
		assert.ElementsMatch(t,
			[]string{RecommendScaleDown, RecommendAttach, RecommendInvestigate},
			types.ParseTokens(f.Recommendations))
	})

	t.Run("size at quota is not underutilised", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "acct/disk/d3", Kind: types.KindDisk,
			SizeGB: 100, Attached: true, ProvisioningState: "succeeded",
		})
		f, err := DiskPolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("zero size is not flagged for size", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "acct/disk/d4", Kind: types.KindDisk,
			SizeGB: 0, Attached: true, ProvisioningState: "succeeded",
		})
		f, err := DiskPolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestDatabasePolicy(t *testing.T) {
	base := types.Resource{
		ID: "acct/db/d1", Kind: types.KindDatabase,
		Type: "Database", SubType: "SQL", Name: "d1", Status: "Online",
	}

	t.Run("serving database without telemetry is clean", func(t *testing.T) {
		in := testInput(base)
		f, err := DatabasePolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("used size below threshold is flagged", func(t *testing.T) {
		in := testInput(base)
		in.Metrics[MetricDatabaseUsedGB] = []float64{0.2, 0.4}
		f, err := DatabasePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, ReasonUnderutilised, f.Reasons)
		assert.Equal(t, RecommendScaleDown, f.Recommendations)
		assert.InDelta(t, 0.3, f.CurrentSizeGB, 1e-9)
	})

	t.Run("used size at threshold is not flagged", func(t *testing.T) {
		in := testInput(base)
		in.Metrics[MetricDatabaseUsedGB] = []float64{1.0}
		f, err := DatabasePolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("sub-type threshold overrides the shared one", func(t *testing.T) {
		in := testInput(base)
		in.Thresholds.DatabaseUsedGBByType = map[string]float64{"sql": 10}
		in.Metrics[MetricDatabaseUsedGB] = []float64{4}
		f, err := DatabasePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, ReasonUnderutilised, f.Reasons)
	})

	t.Run("non-serving status is orphaned", func(t *testing.T) {
		r := base
		r.Status = "Paused"
		in := testInput(r)
		f, err := DatabasePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, ReasonOrphaned, f.Reasons)
		assert.Equal(t, RecommendDelete, f.Recommendations)
	})

	t.Run("succeeded counts as serving", func(t *testing.T) {
		r := base
		r.Status = "Succeeded"
		f, err := DatabasePolicy{}.Evaluate(testInput(r))
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("both sub-checks join into one finding", func(t *testing.T) {
		r := base
		r.Status = "Disabled"
		in := testInput(r)
		in.Metrics[MetricDatabaseUsedGB] = []float64{0.1}
		f, err := DatabasePolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.ElementsMatch(t,
			[]string{ReasonUnderutilised, ReasonOrphaned},
			types.ParseTokens(f.Reasons))
		assert.ElementsMatch(t,
			[]string{RecommendScaleDown, RecommendDelete},
			types.ParseTokens(f.Recommendations))
	})

	t.Run("empty status stays silent", func(t *testing.T) {
		r := base
		r.Status = ""
		f, err := DatabasePolicy{}.Evaluate(testInput(r))
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestSubnetPolicy(t *testing.T) {
	t.Run("default-named range is skipped", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "net/default", Kind: types.KindSubnet, Name: "Default-Subnet",
			Subnet: &types.SubnetInfo{AddressPrefix: "10.0.0.0/24", TotalAddrs: 256, ReservedAddrs: 5},
		})
		f, err := SubnetPolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("missing prefix is skipped", func(t *testing.T) {
		in := testInput(types.Resource{ID: "net/s1", Kind: types.KindSubnet, Name: "apps"})
		f, err := SubnetPolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("mostly free range is flagged", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "net/s2", Kind: types.KindSubnet, Name: "apps",
			Subnet: &types.SubnetInfo{AddressPrefix: "10.0.1.0/24", TotalAddrs: 256, ReservedAddrs: 5, UsedAddrs: 2},
		})
		f, err := SubnetPolicy{}.Evaluate(in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, ReasonUnderutilised, f.Reasons)
		assert.Greater(t, f.FreePercent, 90.0)
	})

	t.Run("free exactly at threshold is not flagged", func(t *testing.T) {
		in := testInput(types.Resource{
			ID: "net/s3", Kind: types.KindSubnet, Name: "apps",
			Subnet: &types.SubnetInfo{AddressPrefix: "10.0.2.0/26", TotalAddrs: 20, ReservedAddrs: 0, UsedAddrs: 2},
		})
		// 18/20 = 90 percent free, threshold default 90
		f, err := SubnetPolicy{}.Evaluate(in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestClassifierOrder(t *testing.T) {
	ctx := context.Background()
	tags, err := NewTagPolicy(ctx)
	require.NoError(t, err)
	c := New(tags)

	t.Run("claimed resource never falls through to tags", func(t *testing.T) {
		// compute with no metrics and no tags: the compute policy claims
		// the kind and stays silent, so no untagged finding either
		in := testInput(types.Resource{ID: "acct/vm/v9", Kind: types.KindCompute})
		f, err := c.Classify(ctx, in)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("unclaimed resource gets tag check", func(t *testing.T) {
		in := testInput(types.Resource{ID: "acct/app/a1", Kind: types.KindOther})
		f, err := c.Classify(ctx, in)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, ReasonUntagged, f.Reasons)
		assert.Equal(t, RecommendAddTag, f.Recommendations)
	})
}

func TestThresholdsMerge(t *testing.T) {
	stored := Thresholds{ComputeAvgPercent: 35}
	merged := stored.Merge(DefaultThresholds())
	assert.Equal(t, 35.0, merged.ComputeAvgPercent)
	assert.Equal(t, 100.0, merged.DiskQuotaGB)
	assert.Equal(t, 1.0, merged.StorageUsedGB)
	assert.Equal(t, 90.0, merged.SubnetFreePercent)
	assert.Equal(t, 1.0, merged.DatabaseUsedGB)
}
