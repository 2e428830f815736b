package azure

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/sql/armsql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/types"
)

func TestPrefixAddrCount(t *testing.T) {
	tests := []struct {
		prefix string
		want   int
	}{
		{"10.0.0.0/24", 256},
		{"10.0.0.0/26", 64},
		{"10.0.0.0/32", 1},
		{"not-a-prefix", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, prefixAddrCount(tt.prefix), tt.prefix)
	}
}

func TestResourceGroupOf(t *testing.T) {
	id := "/subscriptions/sub-1/resourceGroups/rg-apps/providers/Microsoft.Network/networkWatchers/nw-1"
	assert.Equal(t, "rg-apps", resourceGroupOf(id))
	assert.Equal(t, "", resourceGroupOf("/subscriptions/sub-1"))
}

func TestConvertDisk(t *testing.T) {
	disk := &armcompute.Disk{
		ID:       to.Ptr("/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/disks/data-1"),
		Name:     to.Ptr("data-1"),
		Location: to.Ptr("westeurope"),
		Tags:     map[string]*string{"Owner": to.Ptr("alice")},
		Properties: &armcompute.DiskProperties{
			DiskSizeGB:        to.Ptr(int32(64)),
			ProvisioningState: to.Ptr("Succeeded"),
		},
	}

	r := convertDisk(disk, "sub-1")
	assert.Equal(t, types.KindDisk, r.Kind)
	assert.Equal(t, 64.0, r.SizeGB)
	assert.False(t, r.Attached)
	assert.Equal(t, "Succeeded", r.ProvisioningState)
	assert.Equal(t, "alice", r.Tags["Owner"])

	disk.ManagedBy = to.Ptr("/subscriptions/sub-1/.../virtualMachines/vm-1")
	assert.True(t, convertDisk(disk, "sub-1").Attached)
}

func TestSumCostRows(t *testing.T) {
	rows := [][]interface{}{
		{1.5, "/subscriptions/s/disk/a", "USD"},
		{2.5, "/subscriptions/s/disk/a", "USD"},
		{4.0, "/subscriptions/s/vm/b", "EUR"},
		{9.9}, // no resource id, dropped
	}

	out := sumCostRows(rows)
	require.Len(t, out, 2)
	assert.Equal(t, "/subscriptions/s/disk/a", out[0].ResourceID)
	assert.InDelta(t, 4.0, out[0].Amount, 1e-9)
	assert.Equal(t, "USD", out[0].Currency)
	assert.Equal(t, "EUR", out[1].Currency)
}

func TestAzureMetricSpec(t *testing.T) {
	spec, ok := azureMetricSpec(types.KindCompute, classify.MetricCPU)
	require.True(t, ok)
	assert.Equal(t, "Percentage CPU", spec.name)
	assert.Nil(t, spec.convert)

	spec, ok = azureMetricSpec(types.KindCompute, classify.MetricMemory)
	require.True(t, ok)
	assert.Equal(t, "Available Memory Percentage", spec.name)
	// 70 percent available means 30 percent utilized
	assert.InDelta(t, 30, spec.convert(70), 1e-9)
	assert.Equal(t, 0.0, spec.convert(120))
	assert.Equal(t, 100.0, spec.convert(-5))

	spec, ok = azureMetricSpec(types.KindStorage, classify.MetricUsedCapacity)
	require.True(t, ok)
	assert.Equal(t, "UsedCapacity", spec.name)
	assert.InDelta(t, 2, spec.convert(2*bytesPerGB), 1e-9)

	spec, ok = azureMetricSpec(types.KindDatabase, classify.MetricDatabaseUsedGB)
	require.True(t, ok)
	assert.Equal(t, "storage", spec.name)
	assert.InDelta(t, 0.5, spec.convert(bytesPerGB/2), 1e-9)

	// byte counters have no percent scale
	_, ok = azureMetricSpec(types.KindCompute, classify.MetricNetwork)
	assert.False(t, ok)
}

func TestConvertDatabase(t *testing.T) {
	status := armsql.DatabaseStatusPaused
	db := &armsql.Database{
		ID:       to.Ptr("/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Sql/servers/srv/databases/app"),
		Name:     to.Ptr("app"),
		Location: to.Ptr("westeurope"),
		Tags:     map[string]*string{"Owner": to.Ptr("alice")},
		Properties: &armsql.DatabaseProperties{
			Status:       &status,
			MaxSizeBytes: to.Ptr(int64(2 * bytesPerGB)),
		},
	}

	r := convertDatabase(db, "sub-1")
	assert.Equal(t, types.KindDatabase, r.Kind)
	assert.Equal(t, "Database", r.Type)
	assert.Equal(t, "SQL", r.SubType)
	assert.Equal(t, "Paused", r.Status)
	assert.Equal(t, 2.0, r.SizeGB)
	assert.Equal(t, "alice", r.Tags["Owner"])
}
