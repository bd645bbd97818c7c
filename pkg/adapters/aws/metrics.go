package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// metricLookback is the window usage signals are computed over.
const metricLookback = 14 * 24 * time.Hour

// MetricsClient reads CloudWatch usage signals for collectors. A metric
// that cannot be fetched is reported as nil, never as zero: zero is an
// observation, nil is the absence of one.
type MetricsClient struct {
	client *cloudwatch.Client
	now    func() time.Time
}

func NewMetricsClient(cfg aws.Config) *MetricsClient {
	return &MetricsClient{client: cloudwatch.NewFromConfig(cfg), now: time.Now}
}

// MetricMax returns the maximum datapoint over the lookback window, or
// nil when the API fails or returns no datapoints.
func (m *MetricsClient) MetricMax(ctx context.Context, namespace, metricName string, dimensions []types.Dimension) *float64 {
	return m.statistic(ctx, namespace, metricName, dimensions, types.StatisticMaximum)
}

// MetricSum returns the summed datapoints over the lookback window.
func (m *MetricsClient) MetricSum(ctx context.Context, namespace, metricName string, dimensions []types.Dimension) *float64 {
	return m.statistic(ctx, namespace, metricName, dimensions, types.StatisticSum)
}

func (m *MetricsClient) statistic(ctx context.Context, namespace, metricName string, dimensions []types.Dimension, stat types.Statistic) *float64 {
	end := m.now()
	out, err := m.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metricName),
		Dimensions: dimensions,
		StartTime:  aws.Time(end.Add(-metricLookback)),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []types.Statistic{stat},
	})
	if err != nil || len(out.Datapoints) == 0 {
		return nil
	}

	var val float64
	for _, dp := range out.Datapoints {
		switch stat {
		case types.StatisticMaximum:
			if dp.Maximum != nil && *dp.Maximum > val {
				val = *dp.Maximum
			}
		case types.StatisticSum:
			if dp.Sum != nil {
				val += *dp.Sum
			}
		}
	}
	return &val
}

func dimension(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
