package azure

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/sql/armsql"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/frugalcloud/sweeper/types"
)

// subnetReservedAddrs is the count Azure keeps out of every range
// (network, broadcast, gateway, two DNS).
const subnetReservedAddrs = 5

// ListResources walks storage accounts, virtual machines, managed
// disks, SQL databases and subnets, emitting one neutral descriptor per
// object.
func (g *Gateway) ListResources(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	accounts, err := g.listStorageAccounts(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, accounts...)

	vms, err := g.listVirtualMachines(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, vms...)

	disks, err := g.listDisks(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, disks...)

	databases, err := g.listDatabases(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, databases...)

	subnets, err := g.listSubnets(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, subnets...)

	return resources, nil
}

func (g *Gateway) listStorageAccounts(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	pager := g.accounts.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list storage accounts: %w", err)
		}
		for _, account := range page.Value {
			resources = append(resources, convertStorageAccount(account, g.subscriptionID))
		}
	}
	return resources, nil
}

func convertStorageAccount(account *armstorage.Account, subscriptionID string) types.Resource {
	r := types.Resource{
		ID:          deref(account.ID),
		Provider:    "azure",
		AccountUnit: subscriptionID,
		Kind:        types.KindStorage,
		Type:        "Storage",
		SubType:     "StorageAccount",
		Name:        deref(account.Name),
		Region:      deref(account.Location),
		Tags:        stringTags(account.Tags),
	}
	if account.Properties != nil {
		if account.Properties.AccessTier != nil {
			r.Status = strings.ToLower(string(*account.Properties.AccessTier))
		}
		if account.Properties.ProvisioningState != nil {
			r.ProvisioningState = string(*account.Properties.ProvisioningState)
		}
	}
	return r
}

func (g *Gateway) listVirtualMachines(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	pager := g.vms.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual machines: %w", err)
		}
		for _, vm := range page.Value {
			resources = append(resources, convertVirtualMachine(vm, g.subscriptionID))
		}
	}
	return resources, nil
}

func convertVirtualMachine(vm *armcompute.VirtualMachine, subscriptionID string) types.Resource {
	r := types.Resource{
		ID:          deref(vm.ID),
		Provider:    "azure",
		AccountUnit: subscriptionID,
		Kind:        types.KindCompute,
		Type:        "Compute",
		SubType:     "VirtualMachine",
		Name:        deref(vm.Name),
		Region:      deref(vm.Location),
		Tags:        stringTags(vm.Tags),
	}
	if vm.Properties != nil {
		r.ProvisioningState = deref(vm.Properties.ProvisioningState)
		if vm.Properties.HardwareProfile != nil && vm.Properties.HardwareProfile.VMSize != nil {
			r.Status = string(*vm.Properties.HardwareProfile.VMSize)
		}
	}
	return r
}

func (g *Gateway) listDisks(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	pager := g.disks.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list managed disks: %w", err)
		}
		for _, disk := range page.Value {
			resources = append(resources, convertDisk(disk, g.subscriptionID))
		}
	}
	return resources, nil
}

func convertDisk(disk *armcompute.Disk, subscriptionID string) types.Resource {
	r := types.Resource{
		ID:          deref(disk.ID),
		Provider:    "azure",
		AccountUnit: subscriptionID,
		Kind:        types.KindDisk,
		Type:        "Storage",
		SubType:     "ManagedDisk",
		Name:        deref(disk.Name),
		Region:      deref(disk.Location),
		Tags:        stringTags(disk.Tags),
		Attached:    deref(disk.ManagedBy) != "",
	}
	if disk.Properties != nil {
		if disk.Properties.DiskSizeGB != nil {
			r.SizeGB = float64(*disk.Properties.DiskSizeGB)
		}
		r.ProvisioningState = deref(disk.Properties.ProvisioningState)
		if disk.Properties.DiskState != nil {
			r.Status = string(*disk.Properties.DiskState)
		}
	}
	return r
}

// listDatabases walks every SQL server and lists its databases. The
// server-managed master database is skipped; it is not billable waste.
func (g *Gateway) listDatabases(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	serverPager := g.sqlServers.NewListPager(nil)
	for serverPager.More() {
		page, err := serverPager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list SQL servers: %w", err)
		}
		for _, server := range page.Value {
			if server.ID == nil || server.Name == nil {
				continue
			}
			group := resourceGroupOf(*server.ID)
			dbPager := g.sqlDBs.NewListByServerPager(group, *server.Name, nil)
			for dbPager.More() {
				dbPage, err := dbPager.NextPage(ctx)
				if err != nil {
					return nil, fmt.Errorf("failed to list databases for server %s: %w", *server.Name, err)
				}
				for _, db := range dbPage.Value {
					if strings.EqualFold(deref(db.Name), "master") {
						continue
					}
					resources = append(resources, convertDatabase(db, g.subscriptionID))
				}
			}
		}
	}
	return resources, nil
}

func convertDatabase(db *armsql.Database, subscriptionID string) types.Resource {
	r := types.Resource{
		ID:          deref(db.ID),
		Provider:    "azure",
		AccountUnit: subscriptionID,
		Kind:        types.KindDatabase,
		Type:        "Database",
		SubType:     "SQL",
		Name:        deref(db.Name),
		Region:      deref(db.Location),
		Tags:        stringTags(db.Tags),
	}
	if db.Properties != nil {
		if db.Properties.Status != nil {
			r.Status = string(*db.Properties.Status)
		}
		if db.Properties.MaxSizeBytes != nil {
			r.SizeGB = float64(*db.Properties.MaxSizeBytes) / bytesPerGB
		}
	}
	return r
}

func (g *Gateway) listSubnets(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	pager := g.vnets.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual networks: %w", err)
		}
		for _, vnet := range page.Value {
			if vnet.Properties == nil {
				continue
			}
			for _, subnet := range vnet.Properties.Subnets {
				resources = append(resources, convertSubnet(subnet, vnet, g.subscriptionID))
			}
		}
	}
	return resources, nil
}

func convertSubnet(subnet *armnetwork.Subnet, vnet *armnetwork.VirtualNetwork, subscriptionID string) types.Resource {
	r := types.Resource{
		ID:          deref(subnet.ID),
		Provider:    "azure",
		AccountUnit: subscriptionID,
		Kind:        types.KindSubnet,
		Type:        "Network",
		SubType:     "Subnet",
		Name:        deref(subnet.Name),
		Region:      deref(vnet.Location),
		Tags:        stringTags(vnet.Tags),
	}
	info := &types.SubnetInfo{
		NetworkName:   deref(vnet.Name),
		ReservedAddrs: subnetReservedAddrs,
	}
	if subnet.Properties != nil {
		info.AddressPrefix = deref(subnet.Properties.AddressPrefix)
		info.TotalAddrs = prefixAddrCount(info.AddressPrefix)
		info.UsedAddrs = len(subnet.Properties.IPConfigurations)
		r.ProvisioningState = deref((*string)(subnet.Properties.ProvisioningState))
	}
	r.Subnet = info
	return r
}

// prefixAddrCount returns the address count of a CIDR prefix, capped so
// v6 ranges cannot overflow the int.
func prefixAddrCount(prefix string) int {
	p, err := netip.ParsePrefix(prefix)
	if err != nil {
		return 0
	}
	bits := p.Addr().BitLen() - p.Bits()
	if bits <= 0 {
		return 1
	}
	if bits > 30 {
		bits = 30
	}
	return 1 << bits
}
