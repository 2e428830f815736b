package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/frugalcloud/sweeper/costs"
)

// ListCosts queries Cost Explorer at resource granularity for the
// window, scoped to this account, and sums daily rows per resource.
func (g *Gateway) ListCosts(ctx context.Context, window costs.Window) ([]costs.Row, error) {
	input := &costexplorer.GetCostAndUsageWithResourcesInput{
		TimePeriod: &cetypes.DateInterval{
			Start: awssdk.String(window.Start.Format("2006-01-02")),
			End:   awssdk.String(window.End.Format("2006-01-02")),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
		Filter: &cetypes.Expression{
			Dimensions: &cetypes.DimensionValues{
				Key:    cetypes.DimensionLinkedAccount,
				Values: []string{g.accountID},
			},
		},
		GroupBy: []cetypes.GroupDefinition{
			{
				Type: cetypes.GroupDefinitionTypeDimension,
				Key:  awssdk.String("RESOURCE_ID"),
			},
		},
	}

	type acc struct {
		amount   float64
		currency string
	}
	byID := make(map[string]*acc)
	var order []string

	for {
		resp, err := g.costClient.GetCostAndUsageWithResources(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query cost explorer: %w", err)
		}

		for _, result := range resp.ResultsByTime {
			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				id := group.Keys[0]
				metric, ok := group.Metrics["UnblendedCost"]
				if !ok {
					continue
				}
				var amount float64
				if _, err := fmt.Sscanf(awssdk.ToString(metric.Amount), "%f", &amount); err != nil {
					continue
				}
				a, seen := byID[id]
				if !seen {
					a = &acc{currency: awssdk.ToString(metric.Unit)}
					byID[id] = a
					order = append(order, id)
				}
				a.amount += amount
			}
		}

		if resp.NextPageToken == nil {
			break
		}
		input.NextPageToken = resp.NextPageToken
	}

	rows := make([]costs.Row, 0, len(order))
	for _, id := range order {
		a := byID[id]
		rows = append(rows, costs.Row{ResourceID: id, Amount: a.amount, Currency: a.currency})
	}
	return rows, nil
}
