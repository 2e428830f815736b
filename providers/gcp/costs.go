package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/frugalcloud/sweeper/costs"
)

const billingDataset = "billing_export"

// ListCosts queries the resource-level billing export for the window,
// grouped by resource name. Without a configured billing account there
// is nothing to query.
func (g *Gateway) ListCosts(ctx context.Context, window costs.Window) ([]costs.Row, error) {
	if g.billingAccount == "" {
		return nil, nil
	}

	table := billingTable(g.billingAccount)
	query := fmt.Sprintf(`
		SELECT
			resource.global_name AS resource_id,
			SUM(cost) AS total_cost,
			currency
		FROM %s.%s.%s
		WHERE
			project.id = @projectID
			AND resource.global_name IS NOT NULL
			AND DATE(usage_start_time) >= @startDate
			AND DATE(usage_start_time) < @endDate
		GROUP BY resource_id, currency
	`, g.projectID, billingDataset, table)

	q := g.bq.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "projectID", Value: g.projectID},
		{Name: "startDate", Value: window.Start.Format("2006-01-02")},
		{Name: "endDate", Value: window.End.Format("2006-01-02")},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing export: %w", err)
	}

	var rows []costs.Row
	for {
		var row struct {
			ResourceID string  `bigquery:"resource_id"`
			TotalCost  float64 `bigquery:"total_cost"`
			Currency   string  `bigquery:"currency"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read billing row: %w", err)
		}
		rows = append(rows, costs.Row{
			ResourceID: row.ResourceID,
			Amount:     row.TotalCost,
			Currency:   row.Currency,
		})
	}
	return rows, nil
}

// billingTable derives the export table name from the billing account
// id: billingAccounts/AB-12 becomes
// gcp_billing_export_resource_v1_AB_12.
func billingTable(billingAccount string) string {
	id := strings.TrimPrefix(billingAccount, "billingAccounts/")
	id = strings.ReplaceAll(id, "-", "_")
	return "gcp_billing_export_resource_v1_" + id
}
