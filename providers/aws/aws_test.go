package aws

import (
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/types"
)

func TestConvertVolume(t *testing.T) {
	g := &Gateway{accountID: "123456789012", region: "eu-west-1"}

	volume := ec2types.Volume{
		VolumeId: awssdk.String("vol-0abc"),
		Size:     awssdk.Int32(80),
		State:    ec2types.VolumeStateAvailable,
		Tags: []ec2types.Tag{
			{Key: awssdk.String("Name"), Value: awssdk.String("scratch")},
			{Key: awssdk.String("Owner"), Value: awssdk.String("alice")},
		},
	}

	r := g.convertVolume(volume)
	assert.Equal(t, types.KindDisk, r.Kind)
	assert.Equal(t, "scratch", r.Name)
	assert.Equal(t, 80.0, r.SizeGB)
	assert.False(t, r.Attached)
	assert.Equal(t, "succeeded", r.ProvisioningState)
	assert.Equal(t, "123456789012", r.AccountUnit)
}

func TestConvertSubnet(t *testing.T) {
	g := &Gateway{accountID: "123456789012", region: "eu-west-1"}

	subnet := ec2types.Subnet{
		SubnetId:                awssdk.String("subnet-1"),
		VpcId:                   awssdk.String("vpc-1"),
		CidrBlock:               awssdk.String("10.0.0.0/24"),
		AvailableIpAddressCount: awssdk.Int32(249),
	}

	r := g.convertSubnet(subnet)
	require.NotNil(t, r.Subnet)
	assert.Equal(t, 256, r.Subnet.TotalAddrs)
	assert.Equal(t, subnetReservedAddrs, r.Subnet.ReservedAddrs)
	assert.Equal(t, 2, r.Subnet.UsedAddrs)
	assert.Equal(t, "vpc-1", r.Subnet.NetworkName)
}

func TestConvertSecurityGroup(t *testing.T) {
	sg := ec2types.SecurityGroup{
		GroupId:   awssdk.String("sg-1"),
		GroupName: awssdk.String("web"),
		IpPermissions: []ec2types.IpPermission{
			{},
		},
	}

	rel := convertSecurityGroup(sg, "eu-west-1", map[string]int{"sg-1": 3})
	assert.Equal(t, 3, rel.AttachmentCount)
	assert.Equal(t, 1, rel.RuleCount)

	empty := convertSecurityGroup(ec2types.SecurityGroup{GroupId: awssdk.String("sg-2")}, "eu-west-1", nil)
	assert.Zero(t, empty.AttachmentCount)
	assert.Zero(t, empty.RuleCount)
}

func TestAWSMetricSpec(t *testing.T) {
	instance := types.Resource{Kind: types.KindCompute, ID: "i-0abc", Name: "web-1"}
	spec, ok := awsMetricSpec(instance, classify.MetricCPU)
	require.True(t, ok)
	assert.Equal(t, "AWS/EC2", spec.namespace)
	assert.Equal(t, "CPUUtilization", spec.metricName)

	bucket := types.Resource{Kind: types.KindStorage, Name: "logs"}
	spec, ok = awsMetricSpec(bucket, classify.MetricUsedCapacity)
	require.True(t, ok)
	assert.Equal(t, "BucketSizeBytes", spec.metricName)

	db := types.Resource{Kind: types.KindDatabase, Name: "orders", SizeGB: 100}
	spec, ok = awsMetricSpec(db, classify.MetricDatabaseUsedGB)
	require.True(t, ok)
	assert.Equal(t, "AWS/RDS", spec.namespace)
	assert.Equal(t, "FreeStorageSpace", spec.metricName)
	// 40 GB free of a 100 GB allocation reads as 60 GB used
	assert.InDelta(t, 60, spec.offset+40*bytesPerGB*spec.scale, 1e-9)

	// used space cannot be derived without the allocation size
	db.SizeGB = 0
	_, ok = awsMetricSpec(db, classify.MetricDatabaseUsedGB)
	assert.False(t, ok)

	_, ok = awsMetricSpec(instance, classify.MetricNetwork)
	assert.False(t, ok)
}

func TestDatabaseStatus(t *testing.T) {
	assert.Equal(t, "online", databaseStatus("available"))
	assert.Equal(t, "stopped", databaseStatus("stopped"))
}

func TestInstanceProvisioning(t *testing.T) {
	assert.Equal(t, "succeeded", instanceProvisioning("running"))
	assert.Equal(t, "succeeded", instanceProvisioning("stopped"))
	assert.Equal(t, "terminated", instanceProvisioning("terminated"))
	assert.Equal(t, "", instanceProvisioning(""))
}
