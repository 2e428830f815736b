package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"

	"github.com/frugalcloud/sweeper/costs"
)

// ListCosts queries cost management for the window, grouped by resource
// id. Daily rows for the same resource are summed before returning.
func (g *Gateway) ListCosts(ctx context.Context, window costs.Window) ([]costs.Row, error) {
	scope := fmt.Sprintf("/subscriptions/%s", g.subscriptionID)

	definition := armcostmanagement.QueryDefinition{
		Type:      to.Ptr(armcostmanagement.ExportTypeActualCost),
		Timeframe: to.Ptr(armcostmanagement.TimeframeTypeCustom),
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: to.Ptr(window.Start),
			To:   to.Ptr(window.End),
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: to.Ptr(armcostmanagement.GranularityTypeDaily),
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     to.Ptr("Cost"),
					Function: to.Ptr(armcostmanagement.FunctionTypeSum),
				},
			},
			Grouping: []*armcostmanagement.QueryGrouping{
				{
					Type: to.Ptr(armcostmanagement.QueryColumnTypeDimension),
					Name: to.Ptr("ResourceId"),
				},
			},
		},
	}

	resp, err := g.costQuery.Usage(ctx, scope, definition, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query costs: %w", err)
	}
	if resp.Properties == nil {
		return nil, nil
	}
	return sumCostRows(resp.Properties.Rows), nil
}

// sumCostRows collapses daily query rows into one row per resource id.
// Row layout is [cost, date?, resourceId, currency] depending on the
// grouping; the first float is the cost, the first non-empty string is
// the resource id, the last string is the currency.
func sumCostRows(rows [][]interface{}) []costs.Row {
	type acc struct {
		amount   float64
		currency string
	}
	byID := make(map[string]*acc)
	var order []string

	for _, row := range rows {
		var amount float64
		var id, currency string
		for _, cell := range row {
			switch v := cell.(type) {
			case float64:
				if amount == 0 {
					amount = v
				}
			case string:
				if id == "" {
					id = v
				} else {
					currency = v
				}
			}
		}
		if id == "" {
			continue
		}
		a, ok := byID[id]
		if !ok {
			a = &acc{}
			byID[id] = a
			order = append(order, id)
		}
		a.amount += amount
		if currency != "" {
			a.currency = currency
		}
	}

	out := make([]costs.Row, 0, len(order))
	for _, id := range order {
		a := byID[id]
		currency := a.currency
		if currency == "" {
			currency = "USD"
		}
		out = append(out, costs.Row{ResourceID: id, Amount: a.amount, Currency: currency})
	}
	return out
}
