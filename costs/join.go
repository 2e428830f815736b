// Package costs joins provider cost-export rows to inventory resources
// by normalized identifier. The table is rebuilt fully on every scan.
package costs

import (
	"time"

	"github.com/frugalcloud/sweeper/normalize"
	"github.com/frugalcloud/sweeper/types"
)

// Row is one line of a provider cost export: a resource identifier and
// its aggregated cost over the lookback window.
type Row struct {
	ResourceID string
	Amount     float64
	Currency   string
}

// Window is the cost/metric lookback interval. Cost rows and metric
// queries share the same window; alignment is a configuration input.
type Window struct {
	Start time.Time
	End   time.Time
}

// LookbackWindow returns a window ending at end and spanning days back.
func LookbackWindow(end time.Time, days int) Window {
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// Table maps normalized resource keys to aggregated cost.
type Table struct {
	amounts map[string]float64
}

// Build constructs a join table in one pass over export rows. Keys are
// normalized; on collision the last row wins (export rows are expected
// unique per resource for a given window).
func Build(rows []Row) *Table {
	amounts := make(map[string]float64, len(rows))
	for _, row := range rows {
		amounts[normalize.Key(row.ResourceID)] = row.Amount
	}
	return &Table{amounts: amounts}
}

// Empty returns a table with no rows; every lookup joins to the unknown
// sentinel. Used when the cost listing itself failed.
func Empty() *Table {
	return &Table{amounts: map[string]float64{}}
}

// Lookup joins a normalized resource key to its cost. A miss yields the
// "unknown" sentinel, not zero: unmatched resources are still reported
// but tracked separately in the scan summary.
func (t *Table) Lookup(key string) types.CostAmount {
	amount, ok := t.amounts[key]
	if !ok {
		return types.UnknownCost()
	}
	return types.KnownCost(amount)
}

// Len returns the number of distinct cost rows joined into the table.
func (t *Table) Len() int {
	return len(t.amounts)
}
