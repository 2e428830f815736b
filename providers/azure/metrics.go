package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/costs"
	"github.com/frugalcloud/sweeper/types"
)

const bytesPerGB = 1 << 30

// metricSpec is one monitor query shape for a neutral metric: the
// platform metric name plus the conversion onto the neutral scale.
type metricSpec struct {
	name    string
	convert func(float64) float64
}

func bytesToGB(v float64) float64 { return v / bytesPerGB }

// availableToUtilization turns an available-percentage sample into a
// utilization percentage.
func availableToUtilization(v float64) float64 {
	u := 100 - v
	if u < 0 {
		return 0
	}
	if u > 100 {
		return 100
	}
	return u
}

// azureMetricSpec maps a neutral metric to the monitor metric for the
// resource kind. ok is false when the platform has no equivalent; the
// caller reports no data rather than guessing. Network In/Out Total are
// byte counters with no percent scale, so the network metric stays
// unmapped.
func azureMetricSpec(kind types.ResourceKind, metric string) (metricSpec, bool) {
	switch {
	case kind == types.KindCompute && metric == classify.MetricCPU:
		return metricSpec{name: "Percentage CPU"}, true
	case kind == types.KindCompute && metric == classify.MetricMemory:
		return metricSpec{name: "Available Memory Percentage", convert: availableToUtilization}, true
	case kind == types.KindStorage && metric == classify.MetricUsedCapacity:
		return metricSpec{name: "UsedCapacity", convert: bytesToGB}, true
	case kind == types.KindDatabase && metric == classify.MetricDatabaseUsedGB:
		return metricSpec{name: "storage", convert: bytesToGB}, true
	default:
		return metricSpec{}, false
	}
}

// GetMetric fetches hourly averages for one resource over the window.
func (g *Gateway) GetMetric(ctx context.Context, r types.Resource, metric string, window costs.Window) ([]float64, error) {
	spec, ok := azureMetricSpec(r.Kind, metric)
	if !ok {
		return nil, nil
	}

	timespan := fmt.Sprintf("%s/%s",
		window.Start.Format(time.RFC3339),
		window.End.Format(time.RFC3339))

	resp, err := g.metrics.List(ctx, r.ID, &armmonitor.MetricsClientListOptions{
		Timespan:    to.Ptr(timespan),
		Interval:    to.Ptr("PT1H"),
		Metricnames: to.Ptr(spec.name),
		Aggregation: to.Ptr(string(armmonitor.AggregationTypeAverage)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list metric %s for %s: %w", spec.name, r.Name, err)
	}

	var samples []float64
	for _, m := range resp.Value {
		for _, series := range m.Timeseries {
			for _, point := range series.Data {
				if point.Average == nil {
					continue
				}
				v := *point.Average
				if spec.convert != nil {
					v = spec.convert(v)
				}
				samples = append(samples, v)
			}
		}
	}
	return samples, nil
}
