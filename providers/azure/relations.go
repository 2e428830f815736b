package azure

import (
	"context"
	"fmt"

	"github.com/frugalcloud/sweeper/types"
)

// ListRelations fetches one dependency set for orphan detection.
func (g *Gateway) ListRelations(ctx context.Context, kind types.RelationKind) ([]types.Relation, error) {
	switch kind {
	case types.RelationDisks:
		return g.listDiskRelations(ctx)
	case types.RelationInterfaces:
		return g.listInterfaceRelations(ctx)
	case types.RelationPublicIPs:
		return g.listPublicIPRelations(ctx)
	case types.RelationSecurityGroups:
		return g.listSecurityGroupRelations(ctx)
	case types.RelationFlowLogs:
		return g.listFlowLogRelations(ctx)
	case types.RelationNetworks:
		return g.listNetworkRelations(ctx)
	default:
		return nil, fmt.Errorf("unknown relation kind %q", kind)
	}
}

func (g *Gateway) listDiskRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	pager := g.disks.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list disks: %w", err)
		}
		for _, disk := range page.Value {
			rel := types.Relation{
				Kind:       types.RelationDisks,
				ID:         deref(disk.ID),
				Name:       deref(disk.Name),
				Region:     deref(disk.Location),
				Tags:       stringTags(disk.Tags),
				AttachedTo: deref(disk.ManagedBy),
			}
			if disk.Properties != nil && disk.Properties.DiskSizeGB != nil {
				rel.SizeGB = float64(*disk.Properties.DiskSizeGB)
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (g *Gateway) listInterfaceRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	pager := g.nics.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list network interfaces: %w", err)
		}
		for _, nic := range page.Value {
			rel := types.Relation{
				Kind:   types.RelationInterfaces,
				ID:     deref(nic.ID),
				Name:   deref(nic.Name),
				Region: deref(nic.Location),
				Tags:   stringTags(nic.Tags),
			}
			if nic.Properties != nil && nic.Properties.VirtualMachine != nil {
				rel.AttachedTo = deref(nic.Properties.VirtualMachine.ID)
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (g *Gateway) listPublicIPRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	pager := g.publicIPs.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list public IPs: %w", err)
		}
		for _, ip := range page.Value {
			rel := types.Relation{
				Kind:   types.RelationPublicIPs,
				ID:     deref(ip.ID),
				Name:   deref(ip.Name),
				Region: deref(ip.Location),
				Tags:   stringTags(ip.Tags),
			}
			rel.Bound = ip.Properties != nil && ip.Properties.IPConfiguration != nil
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (g *Gateway) listSecurityGroupRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	pager := g.nsgs.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list security groups: %w", err)
		}
		for _, nsg := range page.Value {
			rel := types.Relation{
				Kind:   types.RelationSecurityGroups,
				ID:     deref(nsg.ID),
				Name:   deref(nsg.Name),
				Region: deref(nsg.Location),
				Tags:   stringTags(nsg.Tags),
			}
			if nsg.Properties != nil {
				rel.AttachmentCount = len(nsg.Properties.NetworkInterfaces)
				rel.SubnetBindings = len(nsg.Properties.Subnets)
				rel.RuleCount = len(nsg.Properties.SecurityRules)
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

// listNetworkRelations lists virtual networks. They feed the
// live-reference index so a flow log targeting an existing network is
// never reported as dangling.
func (g *Gateway) listNetworkRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	pager := g.vnets.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual networks: %w", err)
		}
		for _, vnet := range page.Value {
			relations = append(relations, types.Relation{
				Kind:   types.RelationNetworks,
				ID:     deref(vnet.ID),
				Name:   deref(vnet.Name),
				Region: deref(vnet.Location),
				Tags:   stringTags(vnet.Tags),
			})
		}
	}
	return relations, nil
}

// listFlowLogRelations walks every network watcher and lists its flow
// logs. RefID carries the target the flow log records for; a dead
// target makes the flow log orphaned.
func (g *Gateway) listFlowLogRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	watcherPager := g.watchers.NewListAllPager(nil)
	for watcherPager.More() {
		page, err := watcherPager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list network watchers: %w", err)
		}
		for _, watcher := range page.Value {
			if watcher.ID == nil || watcher.Name == nil {
				continue
			}
			group := resourceGroupOf(*watcher.ID)
			logPager := g.flowLogs.NewListPager(group, *watcher.Name, nil)
			for logPager.More() {
				logPage, err := logPager.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("failed to list flow logs for watcher %s: %w", *watcher.Name, err)
				}
				for _, fl := range logPage.Value {
					rel := types.Relation{
						Kind:   types.RelationFlowLogs,
						ID:     deref(fl.ID),
						Name:   deref(fl.Name),
						Region: deref(fl.Location),
						Tags:   stringTags(fl.Tags),
					}
					if fl.Properties != nil {
						rel.RefID = deref(fl.Properties.TargetResourceID)
					}
					relations = append(relations, rel)
				}
			}
		}
	}
	return relations, nil
}
