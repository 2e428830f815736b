package aws

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/frugalcloud/sweeper/types"
)

// subnetReservedAddrs is the count AWS keeps out of every range
// (network, router, DNS, future use, broadcast).
const subnetReservedAddrs = 5

// ListResources walks buckets, instances, EBS volumes, RDS instances
// and subnets.
func (g *Gateway) ListResources(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	buckets, err := g.listBuckets(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, buckets...)

	instances, err := g.listInstances(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, instances...)

	volumes, err := g.listVolumes(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, volumes...)

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

func (g *Gateway) listBuckets(ctx context.Context) ([]types.Resource, error) {
	resp, err := g.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	resources := make([]types.Resource, 0, len(resp.Buckets))
	for _, bucket := range resp.Buckets {
		name := awssdk.ToString(bucket.Name)
		resources = append(resources, types.Resource{
			ID:          "arn:aws:s3:::" + name,
			Provider:    "aws",
			AccountUnit: g.accountID,
			Kind:        types.KindStorage,
			Type:        "Storage",
			SubType:     "Bucket",
			Name:        name,
			Region:      g.region,
		})
	}
	return resources, nil
}

func (g *Gateway) listInstances(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := ec2.NewDescribeInstancesPaginator(g.ec2Client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				resources = append(resources, g.convertInstance(instance))
			}
		}
	}
	return resources, nil
}

func (g *Gateway) convertInstance(instance ec2types.Instance) types.Resource {
	tags := tagMap(instance.Tags)
	status := ""
	if instance.State != nil {
		status = string(instance.State.Name)
	}
	return types.Resource{
		ID:                awssdk.ToString(instance.InstanceId),
		Provider:          "aws",
		AccountUnit:       g.accountID,
		Kind:              types.KindCompute,
		Type:              "Compute",
		SubType:           "Instance",
		Name:              nameFromTags(tags, awssdk.ToString(instance.InstanceId)),
		Region:            g.region,
		Status:            status,
		Tags:              tags,
		ProvisioningState: instanceProvisioning(status),
	}
}

func (g *Gateway) listVolumes(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := ec2.NewDescribeVolumesPaginator(g.ec2Client, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe volumes: %w", err)
		}
		for _, volume := range page.Volumes {
			resources = append(resources, g.convertVolume(volume))
		}
	}
	return resources, nil
}

func (g *Gateway) convertVolume(volume ec2types.Volume) types.Resource {
	tags := tagMap(volume.Tags)
	id := awssdk.ToString(volume.VolumeId)
	return types.Resource{
		ID:                id,
		Provider:          "aws",
		AccountUnit:       g.accountID,
		Kind:              types.KindDisk,
		Type:              "Storage",
		SubType:           "Volume",
		Name:              nameFromTags(tags, id),
		Region:            g.region,
		Status:            string(volume.State),
		Tags:              tags,
		SizeGB:            float64(awssdk.ToInt32(volume.Size)),
		Attached:          len(volume.Attachments) > 0,
		ProvisioningState: volumeProvisioning(volume.State),
	}
}

func (g *Gateway) listDatabases(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := rds.NewDescribeDBInstancesPaginator(g.rdsClient, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe DB instances: %w", err)
		}
		for _, db := range page.DBInstances {
			resources = append(resources, g.convertDBInstance(db))
		}
	}
	return resources, nil
}

func (g *Gateway) convertDBInstance(db rdstypes.DBInstance) types.Resource {
	return types.Resource{
		ID:          awssdk.ToString(db.DBInstanceArn),
		Provider:    "aws",
		AccountUnit: g.accountID,
		Kind:        types.KindDatabase,
		Type:        "Database",
		SubType:     strings.ToLower(awssdk.ToString(db.Engine)),
		Name:        awssdk.ToString(db.DBInstanceIdentifier),
		Region:      g.region,
		Status:      databaseStatus(awssdk.ToString(db.DBInstanceStatus)),
		Tags:        rdsTagMap(db.TagList),
		SizeGB:      float64(awssdk.ToInt32(db.AllocatedStorage)),
	}
}

// databaseStatus folds the RDS serving state onto the neutral one the
// database policy treats as healthy.
func databaseStatus(s string) string {
	if s == "available" {
		return "online"
	}
	return s
}

func rdsTagMap(tags []rdstypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}
	return out
}

func (g *Gateway) listSubnets(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := ec2.NewDescribeSubnetsPaginator(g.ec2Client, &ec2.DescribeSubnetsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe subnets: %w", err)
		}
		for _, subnet := range page.Subnets {
			resources = append(resources, g.convertSubnet(subnet))
		}
	}
	return resources, nil
}

func (g *Gateway) convertSubnet(subnet ec2types.Subnet) types.Resource {
	tags := tagMap(subnet.Tags)
	id := awssdk.ToString(subnet.SubnetId)
	cidr := awssdk.ToString(subnet.CidrBlock)
	total := cidrAddrCount(cidr)

	// AvailableIpAddressCount already excludes the platform-reserved
	// addresses, so used is what remains of the usable range.
	used := total - subnetReservedAddrs - int(awssdk.ToInt32(subnet.AvailableIpAddressCount))
	if used < 0 {
		used = 0
	}

	return types.Resource{
		ID:          id,
		Provider:    "aws",
		AccountUnit: g.accountID,
		Kind:        types.KindSubnet,
		Type:        "Network",
		SubType:     "Subnet",
		Name:        nameFromTags(tags, id),
		Region:      g.region,
		Tags:        tags,
		Subnet: &types.SubnetInfo{
			AddressPrefix: cidr,
			TotalAddrs:    total,
			ReservedAddrs: subnetReservedAddrs,
			UsedAddrs:     used,
			NetworkName:   awssdk.ToString(subnet.VpcId),
		},
	}
}

func instanceProvisioning(state string) string {
	switch state {
	case "running", "stopped":
		return "succeeded"
	case "":
		return ""
	default:
		return state
	}
}

func volumeProvisioning(state ec2types.VolumeState) string {
	switch state {
	case ec2types.VolumeStateAvailable, ec2types.VolumeStateInUse:
		return "succeeded"
	case "":
		return ""
	default:
		return string(state)
	}
}

func tagMap(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}
	return out
}

func nameFromTags(tags map[string]string, fallback string) string {
	if name := tags["Name"]; name != "" {
		return name
	}
	return fallback
}

func cidrAddrCount(cidr string) int {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
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
