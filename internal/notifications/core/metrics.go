package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"courier/internal/types"
)

// CloudWatchClient is the subset of the CloudWatch API used for metrics.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ DeliveryMetrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics emits:
//   - DeliveryAttempt {Channel, Adapter, Result}: one per send attempt
//   - DeliveryLatency {Channel}: adapter call duration in milliseconds
//   - OutboxPublished: jobs published per relay drain
//   - OutboxLag: age of the oldest row in a drain, in seconds
//
// Publishing failures are logged and never affect delivery.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordAttempt(ctx context.Context, channel string, adapter types.AdapterID, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(channel)},
			{Name: aws.String(types.DimAdapter), Value: aws.String(string(adapter))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, channel string, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(channel)},
		},
	})
}

func (m *CloudWatchMetrics) RecordOutboxPublished(ctx context.Context, n int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricOutboxPublished),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

func (m *CloudWatchMetrics) RecordOutboxLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricOutboxLag),
		Value:      aws.Float64(lag.Seconds()),
		Unit:       cwtypes.StandardUnitSeconds,
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		m.logger.Error("failed to publish metric", "metric", aws.ToString(datum.MetricName), "error", err)
	}
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) RecordAttempt(context.Context, string, types.AdapterID, MetricResult) {}
func (NopMetrics) RecordLatency(context.Context, string, time.Duration)                 {}
func (NopMetrics) RecordOutboxPublished(context.Context, int)                           {}
func (NopMetrics) RecordOutboxLag(context.Context, time.Duration)                       {}
