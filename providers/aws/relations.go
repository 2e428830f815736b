package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/frugalcloud/sweeper/types"
)

// ListRelations fetches one dependency set for orphan detection.
func (g *Gateway) ListRelations(ctx context.Context, kind types.RelationKind) ([]types.Relation, error) {
	switch kind {
	case types.RelationDisks:
		return g.listVolumeRelations(ctx)
	case types.RelationInterfaces:
		return g.listInterfaceRelations(ctx)
	case types.RelationPublicIPs:
		return g.listAddressRelations(ctx)
	case types.RelationSecurityGroups:
		return g.listSecurityGroupRelations(ctx)
	case types.RelationFlowLogs:
		return g.listFlowLogRelations(ctx)
	case types.RelationNetworks:
		return g.listVpcRelations(ctx)
	default:
		return nil, fmt.Errorf("unknown relation kind %q", kind)
	}
}

func (g *Gateway) listVolumeRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	paginator := ec2.NewDescribeVolumesPaginator(g.ec2Client, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe volumes: %w", err)
		}
		for _, volume := range page.Volumes {
			tags := tagMap(volume.Tags)
			id := awssdk.ToString(volume.VolumeId)
			rel := types.Relation{
				Kind:   types.RelationDisks,
				ID:     id,
				Name:   nameFromTags(tags, id),
				Region: g.region,
				Tags:   tags,
				SizeGB: float64(awssdk.ToInt32(volume.Size)),
			}
			if len(volume.Attachments) > 0 {
				rel.AttachedTo = awssdk.ToString(volume.Attachments[0].InstanceId)
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (g *Gateway) listInterfaceRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	paginator := ec2.NewDescribeNetworkInterfacesPaginator(g.ec2Client, &ec2.DescribeNetworkInterfacesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network interfaces: %w", err)
		}
		for _, nic := range page.NetworkInterfaces {
			rel := types.Relation{
				Kind:   types.RelationInterfaces,
				ID:     awssdk.ToString(nic.NetworkInterfaceId),
				Name:   awssdk.ToString(nic.NetworkInterfaceId),
				Region: g.region,
			}
			if nic.Attachment != nil {
				rel.AttachedTo = awssdk.ToString(nic.Attachment.InstanceId)
			}
			relations = append(relations, rel)
		}
	}
	return relations, nil
}

func (g *Gateway) listAddressRelations(ctx context.Context) ([]types.Relation, error) {
	resp, err := g.ec2Client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe addresses: %w", err)
	}

	relations := make([]types.Relation, 0, len(resp.Addresses))
	for _, addr := range resp.Addresses {
		tags := tagMap(addr.Tags)
		id := awssdk.ToString(addr.AllocationId)
		relations = append(relations, types.Relation{
			Kind:   types.RelationPublicIPs,
			ID:     id,
			Name:   nameFromTags(tags, awssdk.ToString(addr.PublicIp)),
			Region: g.region,
			Tags:   tags,
			Bound:  addr.AssociationId != nil,
		})
	}
	return relations, nil
}

// listSecurityGroupRelations counts each group's interface attachments
// by walking network interfaces once.
func (g *Gateway) listSecurityGroupRelations(ctx context.Context) ([]types.Relation, error) {
	attachments := make(map[string]int)
	nicPaginator := ec2.NewDescribeNetworkInterfacesPaginator(g.ec2Client, &ec2.DescribeNetworkInterfacesInput{})
	for nicPaginator.HasMorePages() {
		page, err := nicPaginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network interfaces: %w", err)
		}
		for _, nic := range page.NetworkInterfaces {
			for _, group := range nic.Groups {
				attachments[awssdk.ToString(group.GroupId)]++
			}
		}
	}

	var relations []types.Relation
	sgPaginator := ec2.NewDescribeSecurityGroupsPaginator(g.ec2Client, &ec2.DescribeSecurityGroupsInput{})
	for sgPaginator.HasMorePages() {
		page, err := sgPaginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		for _, sg := range page.SecurityGroups {
			relations = append(relations, convertSecurityGroup(sg, g.region, attachments))
		}
	}
	return relations, nil
}

func convertSecurityGroup(sg ec2types.SecurityGroup, region string, attachments map[string]int) types.Relation {
	id := awssdk.ToString(sg.GroupId)
	return types.Relation{
		Kind:            types.RelationSecurityGroups,
		ID:              id,
		Name:            awssdk.ToString(sg.GroupName),
		Region:          region,
		Tags:            tagMap(sg.Tags),
		AttachmentCount: attachments[id],
		RuleCount:       len(sg.IpPermissions) + len(sg.IpPermissionsEgress),
	}
}

// listVpcRelations lists VPCs for the live-reference index. A flow log
// whose RefID is a still-existing VPC is not dangling.
func (g *Gateway) listVpcRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	paginator := ec2.NewDescribeVpcsPaginator(g.ec2Client, &ec2.DescribeVpcsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe VPCs: %w", err)
		}
		for _, vpc := range page.Vpcs {
			tags := tagMap(vpc.Tags)
			id := awssdk.ToString(vpc.VpcId)
			relations = append(relations, types.Relation{
				Kind:   types.RelationNetworks,
				ID:     id,
				Name:   nameFromTags(tags, id),
				Region: g.region,
				Tags:   tags,
			})
		}
	}
	return relations, nil
}

func (g *Gateway) listFlowLogRelations(ctx context.Context) ([]types.Relation, error) {
	var relations []types.Relation
	paginator := ec2.NewDescribeFlowLogsPaginator(g.ec2Client, &ec2.DescribeFlowLogsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe flow logs: %w", err)
		}
		for _, fl := range page.FlowLogs {
			tags := tagMap(fl.Tags)
			id := awssdk.ToString(fl.FlowLogId)
			relations = append(relations, types.Relation{
				Kind:   types.RelationFlowLogs,
				ID:     id,
				Name:   nameFromTags(tags, id),
				Region: g.region,
				Tags:   tags,
				RefID:  awssdk.ToString(fl.ResourceId),
			})
		}
	}
	return relations, nil
}
