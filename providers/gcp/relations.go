package gcp

import (
	"context"
	"fmt"

	"github.com/frugalcloud/sweeper/types"
)

// ListRelations fetches one dependency set. GCP has no standalone
// network interfaces, and firewall rules have no attachment model that
// maps onto the security-group checks, so those kinds return empty.
func (g *Gateway) ListRelations(ctx context.Context, kind types.RelationKind) ([]types.Relation, error) {
	switch kind {
	case types.RelationDisks:
		return g.listDiskRelations(ctx)
	case types.RelationPublicIPs:
		return g.listAddressRelations(ctx)
	case types.RelationNetworks:
		return g.listNetworkRelations(ctx)
	case types.RelationInterfaces, types.RelationSecurityGroups, types.RelationFlowLogs:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown relation kind %q", kind)
	}
}

// listNetworkRelations lists the project's VPC networks for the
// live-reference index.
func (g *Gateway) listNetworkRelations(ctx context.Context) ([]types.Relation, error) {
	resp, err := g.compute.Networks.List(g.projectID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	relations := make([]types.Relation, 0, len(resp.Items))
	for _, network := range resp.Items {
		relations = append(relations, types.Relation{
			Kind: types.RelationNetworks,
			ID:   fmt.Sprintf("global/networks/%s", network.Name),
			Name: network.Name,
		})
	}
	return relations, nil
}

func (g *Gateway) listDiskRelations(ctx context.Context) ([]types.Relation, error) {
	zones, err := g.zones(ctx)
	if err != nil {
		return nil, err
	}

	var relations []types.Relation
	for _, zone := range zones {
		resp, err := g.compute.Disks.List(g.projectID, zone).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list disks in %s: %w", zone, err)
		}
		for _, disk := range resp.Items {
			rel := types.Relation{
				Kind:   types.RelationDisks,
				ID:     fmt.Sprintf("zones/%s/disks/%s", zone, disk.Name),
				Name:   disk.Name,
				Region: zoneRegion(zone),
				Tags:   disk.Labels,
				SizeGB: float64(disk.SizeGb),
			}
			if len(disk.Users) > 0 {
				rel.AttachedTo = lastSegment(disk.Users[0])
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (g *Gateway) listAddressRelations(ctx context.Context) ([]types.Relation, error) {
	regions, err := g.regions(ctx)
	if err != nil {
		return nil, err
	}

	var relations []types.Relation
	for _, region := range regions {
		resp, err := g.compute.Addresses.List(g.projectID, region).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses in %s: %w", region, err)
		}
		for _, addr := range resp.Items {
			relations = append(relations, types.Relation{
				Kind:   types.RelationPublicIPs,
				ID:     fmt.Sprintf("regions/%s/addresses/%s", region, addr.Name),
				Name:   addr.Name,
				Region: region,
				Tags:   addr.Labels,
				Bound:  addr.Status == "IN_USE",
			})
		}
	}
	return relations, nil
}
