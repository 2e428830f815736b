package gcp

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	compute "google.golang.org/api/compute/v1"
	storage "google.golang.org/api/storage/v1"

	"github.com/frugalcloud/sweeper/types"
)

// subnetReservedAddrs is the count GCP keeps out of every range
// (network, gateway, second-to-last, broadcast).
const subnetReservedAddrs = 4

// ListResources walks buckets, instances, persistent disks and
// subnetworks.
func (g *Gateway) ListResources(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	buckets, err := g.listBuckets(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, buckets...)

	zones, err := g.zones(ctx)
	if err != nil {
		return nil, err
	}
	for _, zone := range zones {
		instances, err := g.listInstances(ctx, zone)
		if err != nil {
			return nil, err
		}
		resources = append(resources, instances...)

		disks, err := g.listZoneDisks(ctx, zone)
		if err != nil {
			return nil, err
		}
		resources = append(resources, disks...)
	}

	subnets, err := g.listSubnetworks(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, subnets...)

	return resources, nil
}

func (g *Gateway) listBuckets(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	call := g.storage.Buckets.List(g.projectID)
	err := call.Pages(ctx, func(page *storage.Buckets) error {
		for _, bucket := range page.Items {
			resources = append(resources, convertBucket(bucket, g.projectID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	return resources, nil
}

func convertBucket(bucket *storage.Bucket, projectID string) types.Resource {
	return types.Resource{
		ID:          "buckets/" + bucket.Name,
		Provider:    "gcp",
		AccountUnit: projectID,
		Kind:        types.KindStorage,
		Type:        "Storage",
		SubType:     "Bucket",
		Name:        bucket.Name,
		Region:      strings.ToLower(bucket.Location),
		Status:      strings.ToLower(bucket.StorageClass),
		Tags:        bucket.Labels,
	}
}

func (g *Gateway) listInstances(ctx context.Context, zone string) ([]types.Resource, error) {
	resp, err := g.compute.Instances.List(g.projectID, zone).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances in %s: %w", zone, err)
	}
	resources := make([]types.Resource, 0, len(resp.Items))
	for _, instance := range resp.Items {
		resources = append(resources, convertInstance(instance, g.projectID, zone))
	}
	return resources, nil
}

func convertInstance(instance *compute.Instance, projectID, zone string) types.Resource {
	return types.Resource{
		ID:                fmt.Sprintf("zones/%s/instances/%s", zone, instance.Name),
		Provider:          "gcp",
		AccountUnit:       projectID,
		Kind:              types.KindCompute,
		Type:              "Compute",
		SubType:           "Instance",
		Name:              instance.Name,
		Region:            zoneRegion(zone),
		Status:            strings.ToLower(instance.Status),
		Tags:              instance.Labels,
		ProvisioningState: provisioningFromStatus(instance.Status),
	}
}

func (g *Gateway) listZoneDisks(ctx context.Context, zone string) ([]types.Resource, error) {
	resp, err := g.compute.Disks.List(g.projectID, zone).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list disks in %s: %w", zone, err)
	}
	resources := make([]types.Resource, 0, len(resp.Items))
	for _, disk := range resp.Items {
		resources = append(resources, convertZoneDisk(disk, g.projectID, zone))
	}
	return resources, nil
}

func convertZoneDisk(disk *compute.Disk, projectID, zone string) types.Resource {
	return types.Resource{
		ID:                fmt.Sprintf("zones/%s/disks/%s", zone, disk.Name),
		Provider:          "gcp",
		AccountUnit:       projectID,
		Kind:              types.KindDisk,
		Type:              "Storage",
		SubType:           "PersistentDisk",
		Name:              disk.Name,
		Region:            zoneRegion(zone),
		Status:            strings.ToLower(disk.Status),
		Tags:              disk.Labels,
		SizeGB:            float64(disk.SizeGb),
		Attached:          len(disk.Users) > 0,
		ProvisioningState: provisioningFromStatus(disk.Status),
	}
}

func (g *Gateway) listSubnetworks(ctx context.Context) ([]types.Resource, error) {
	regions, err := g.regions(ctx)
	if err != nil {
		return nil, err
	}

	var resources []types.Resource
	for _, region := range regions {
		resp, err := g.compute.Subnetworks.List(g.projectID, region).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list subnetworks in %s: %w", region, err)
		}
		for _, subnet := range resp.Items {
			resources = append(resources, convertSubnetwork(subnet, g.projectID, region))
		}
	}
	return resources, nil
}

func convertSubnetwork(subnet *compute.Subnetwork, projectID, region string) types.Resource {
	return types.Resource{
		ID:          fmt.Sprintf("regions/%s/subnetworks/%s", region, subnet.Name),
		Provider:    "gcp",
		AccountUnit: projectID,
		Kind:        types.KindSubnet,
		Type:        "Network",
		SubType:     "Subnetwork",
		Name:        subnet.Name,
		Region:      region,
		Subnet: &types.SubnetInfo{
			AddressPrefix: subnet.IpCidrRange,
			TotalAddrs:    rangeAddrCount(subnet.IpCidrRange),
			ReservedAddrs: subnetReservedAddrs,
			NetworkName:   lastSegment(subnet.Network),
		},
	}
}

// provisioningFromStatus maps platform lifecycle states onto the
// succeeded/failed vocabulary the disk policy checks.
func provisioningFromStatus(status string) string {
	switch strings.ToUpper(status) {
	case "READY", "RUNNING":
		return "succeeded"
	case "":
		return ""
	default:
		return strings.ToLower(status)
	}
}

// zoneRegion strips the zone suffix: europe-west1-b becomes
// europe-west1.
func zoneRegion(zone string) string {
	if i := strings.LastIndex(zone, "-"); i > 0 {
		return zone[:i]
	}
	return zone
}

func lastSegment(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func rangeAddrCount(cidr string) int {
	p, err := netip.ParsePrefix(cidr)
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
