package gcp

import (
	"context"
	"fmt"
	"time"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/costs"
	"github.com/frugalcloud/sweeper/types"
)

const bytesPerGB = 1 << 30

// gcpMetricFilter maps a neutral metric to a monitoring filter. ok is
// false when the platform has no equivalent.
func gcpMetricFilter(r types.Resource, metric string) (filter string, scale float64, ok bool) {
	switch {
	case r.Kind == types.KindCompute && metric == classify.MetricCPU:
		// utilization is reported 0..1
		return fmt.Sprintf(
			`metric.type = "compute.googleapis.com/instance/cpu/utilization" AND metric.labels.instance_name = %q`,
			r.Name), 100, true
	case r.Kind == types.KindStorage && metric == classify.MetricUsedCapacity:
		return fmt.Sprintf(
			`metric.type = "storage.googleapis.com/storage/total_bytes" AND resource.labels.bucket_name = %q`,
			r.Name), 1.0 / bytesPerGB, true
	default:
		return "", 0, false
	}
}

// GetMetric fetches hourly mean-aligned samples for one resource.
func (g *Gateway) GetMetric(ctx context.Context, r types.Resource, metric string, window costs.Window) ([]float64, error) {
	filter, scale, ok := gcpMetricFilter(r, metric)
	if !ok {
		return nil, nil
	}

	resp, err := g.monitoring.Projects.TimeSeries.List("projects/"+g.projectID).
		Filter(filter).
		IntervalStartTime(window.Start.Format(time.RFC3339)).
		IntervalEndTime(window.End.Format(time.RFC3339)).
		AggregationAlignmentPeriod("3600s").
		AggregationPerSeriesAligner("ALIGN_MEAN").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list metric %s for %s: %w", metric, r.Name, err)
	}

	var samples []float64
	for _, series := range resp.TimeSeries {
		for _, point := range series.Points {
			if point.Value == nil || point.Value.DoubleValue == nil {
				continue
			}
			samples = append(samples, *point.Value.DoubleValue*scale)
		}
	}
	return samples, nil
}
