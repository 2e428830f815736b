package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/costs"
	"github.com/frugalcloud/sweeper/types"
)

const bytesPerGB = 1 << 30

// metricSpec is one CloudWatch query shape for a neutral metric. Each
// sample is reported as offset + average*scale.
type metricSpec struct {
	namespace  string
	metricName string
	dimensions []cwtypes.Dimension
	scale      float64
	offset     float64
}

// awsMetricSpec maps a neutral metric onto the CloudWatch namespace and
// dimensions for the resource kind. ok is false when there is no
// equivalent.
func awsMetricSpec(r types.Resource, metric string) (metricSpec, bool) {
	switch {
	case r.Kind == types.KindCompute && metric == classify.MetricCPU:
		return metricSpec{
			namespace:  "AWS/EC2",
			metricName: "CPUUtilization",
			dimensions: []cwtypes.Dimension{
				{Name: awssdk.String("InstanceId"), Value: awssdk.String(r.ID)},
			},
			scale: 1,
		}, true
	case r.Kind == types.KindStorage && metric == classify.MetricUsedCapacity:
		return metricSpec{
			namespace:  "AWS/S3",
			metricName: "BucketSizeBytes",
			dimensions: []cwtypes.Dimension{
				{Name: awssdk.String("BucketName"), Value: awssdk.String(r.Name)},
				{Name: awssdk.String("StorageType"), Value: awssdk.String("StandardStorage")},
			},
			scale: 1.0 / bytesPerGB,
		}, true
	case r.Kind == types.KindDatabase && metric == classify.MetricDatabaseUsedGB && r.SizeGB > 0:
		// RDS only reports free space; used is allocation minus free
		return metricSpec{
			namespace:  "AWS/RDS",
			metricName: "FreeStorageSpace",
			dimensions: []cwtypes.Dimension{
				{Name: awssdk.String("DBInstanceIdentifier"), Value: awssdk.String(r.Name)},
			},
			scale:  -1.0 / bytesPerGB,
			offset: r.SizeGB,
		}, true
	default:
		return metricSpec{}, false
	}
}

// GetMetric fetches hourly averages for one resource over the window.
func (g *Gateway) GetMetric(ctx context.Context, r types.Resource, metric string, window costs.Window) ([]float64, error) {
	spec, ok := awsMetricSpec(r, metric)
	if !ok {
		return nil, nil
	}

	resp, err := g.cwClient.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  awssdk.String(spec.namespace),
		MetricName: awssdk.String(spec.metricName),
		Dimensions: spec.dimensions,
		StartTime:  awssdk.Time(window.Start),
		EndTime:    awssdk.Time(window.End),
		Period:     awssdk.Int32(int32(time.Hour / time.Second)),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s for %s: %w", spec.metricName, r.Name, err)
	}

	var samples []float64
	for _, point := range resp.Datapoints {
		if point.Average == nil {
			continue
		}
		samples = append(samples, spec.offset+*point.Average*spec.scale)
	}
	return samples, nil
}
