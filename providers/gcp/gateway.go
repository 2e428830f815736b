// Package gcp implements the provider gateway on the Google API
// clients. One gateway is bound to one project; costs come from the
// BigQuery billing export, utilization from Cloud Monitoring.
package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	compute "google.golang.org/api/compute/v1"
	monitoring "google.golang.org/api/monitoring/v3"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/types"
)

func init() {
	providers.Register("gcp", NewGateway)
}

// Gateway talks to one GCP project.
type Gateway struct {
	projectID      string
	billingAccount string

	compute    *compute.Service
	storage    *storage.Service
	monitoring *monitoring.Service
	bq         *bigquery.Client
}

// NewGateway builds the API clients with application-default
// credentials. BillingAccount selects the billing export table; without
// it ListCosts returns no rows.
func NewGateway(ctx context.Context, env types.Environment, creds types.Credentials) (providers.Gateway, error) {
	projectID := creds.ProjectID
	if projectID == "" {
		projectID = env.AccountUnit
	}

	computeSvc, err := compute.NewService(ctx, option.WithScopes(compute.ComputeReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client: %w", err)
	}
	storageSvc, err := storage.NewService(ctx, option.WithScopes(storage.DevstorageReadOnlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	monitoringSvc, err := monitoring.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitoring client: %w", err)
	}
	bqClient, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	return &Gateway{
		projectID:      projectID,
		billingAccount: creds.BillingAccount,
		compute:        computeSvc,
		storage:        storageSvc,
		monitoring:     monitoringSvc,
		bq:             bqClient,
	}, nil
}

func (g *Gateway) Name() string        { return "gcp" }
func (g *Gateway) AccountUnit() string { return g.projectID }

// Close releases the BigQuery client.
func (g *Gateway) Close() error {
	return g.bq.Close()
}

// zones lists the project's zone names.
func (g *Gateway) zones(ctx context.Context) ([]string, error) {
	resp, err := g.compute.Zones.List(g.projectID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	names := make([]string, 0, len(resp.Items))
	for _, zone := range resp.Items {
		names = append(names, zone.Name)
	}
	return names, nil
}

// regions lists the project's region names.
func (g *Gateway) regions(ctx context.Context) ([]string, error) {
	resp, err := g.compute.Regions.List(g.projectID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	names := make([]string, 0, len(resp.Items))
	for _, region := range resp.Items {
		names = append(names, region.Name)
	}
	return names, nil
}
