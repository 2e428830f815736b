package costs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/frugalcloud/sweeper/normalize"
)

func TestBuildNormalizesRowIDs(t *testing.T) {
	table := Build([]Row{
		{ResourceID: "/Subscriptions/ABC/disks/Disk-1/", Amount: 4.2},
	})

	cost := table.Lookup(normalize.Key("/subscriptions/abc/disks/disk-1"))
	assert.True(t, cost.Known)
	assert.Equal(t, 4.2, cost.Amount)
}

func TestBuildLastWriteWins(t *testing.T) {
	table := Build([]Row{
		{ResourceID: "/s/a/vm-1", Amount: 1.0},
		{ResourceID: "/S/A/VM-1", Amount: 2.0},
	})

	assert.Equal(t, 1, table.Len())
	cost := table.Lookup("/s/a/vm-1")
	assert.Equal(t, 2.0, cost.Amount)
}

func TestLookupMissYieldsUnknownNotZero(t *testing.T) {
	table := Build([]Row{{ResourceID: "/s/a/vm-1", Amount: 9.5}})

	miss := table.Lookup("/s/a/vm-2")
	assert.False(t, miss.Known, "unmatched resources join to the unknown sentinel")
	assert.Zero(t, miss.Amount)

	zero := Build([]Row{{ResourceID: "/s/a/free", Amount: 0}}).Lookup("/s/a/free")
	assert.True(t, zero.Known, "an actual zero cost is known, not unknown")
}

func TestEmptyTable(t *testing.T) {
	table := Empty()
	assert.Zero(t, table.Len())
	assert.False(t, table.Lookup("anything").Known)
}

func TestLookbackWindow(t *testing.T) {
	end := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	w := LookbackWindow(end, 7)
	assert.Equal(t, end.AddDate(0, 0, -7), w.Start)
	assert.Equal(t, end, w.End)
}
