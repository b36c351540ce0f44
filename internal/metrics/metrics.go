// Package metrics emits operational metrics for the digest pipeline to
// CloudWatch. Metric emission never fails the caller; errors are logged and
// dropped.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"roomdigest/internal/types"
)

// Namespace is the CloudWatch namespace for all digest metrics.
const Namespace = "RoomDigest"

// Metric and dimension names.
const (
	MetricSendAttempt  = "DigestSendAttempt"
	MetricBuildLatency = "DigestBuildLatency"
	MetricQueueLag     = "DigestQueueLag"

	DimResult = "Result"
)

// SendResult labels the outcome of a digest send attempt.
type SendResult string

const (
	ResultSuccess   SendResult = "success"
	ResultRetryable SendResult = "retryable_failure"
	ResultDropped   SendResult = "dropped"
)

// DigestMetrics is the metric surface the worker records to.
type DigestMetrics interface {
	// RecordSend emits one send-attempt outcome.
	RecordSend(ctx context.Context, result SendResult)

	// RecordBuildLatency emits how long the aggregation pipeline took for
	// one job.
	RecordBuildLatency(ctx context.Context, duration time.Duration)

	// RecordQueueLag emits the time between job enqueue and processing
	// start, measuring backlog plus visibility delay.
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchDigestMetrics implements DigestMetrics against CloudWatch.
type CloudWatchDigestMetrics struct {
	client CloudWatchClient
	logger types.Logger
}

var _ DigestMetrics = (*CloudWatchDigestMetrics)(nil)

// NewCloudWatchDigestMetrics creates a DigestMetrics publishing to the
// RoomDigest namespace.
func NewCloudWatchDigestMetrics(client CloudWatchClient, logger types.Logger) *CloudWatchDigestMetrics {
	return &CloudWatchDigestMetrics{
		client: client,
		logger: logger,
	}
}

// RecordSend emits a DigestSendAttempt metric with the Result dimension.
func (m *CloudWatchDigestMetrics) RecordSend(ctx context.Context, result SendResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricSendAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record send metric",
			"error", err.Error(),
			"result", string(result),
		)
	}
}

// RecordBuildLatency emits the aggregation latency in milliseconds.
func (m *CloudWatchDigestMetrics) RecordBuildLatency(ctx context.Context, duration time.Duration) {
	m.putMillis(ctx, MetricBuildLatency, duration)
}

// RecordQueueLag emits the enqueue-to-processing lag in milliseconds.
func (m *CloudWatchDigestMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.putMillis(ctx, MetricQueueLag, lag)
}

func (m *CloudWatchDigestMetrics) putMillis(ctx context.Context, name string, d time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(float64(d.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", name,
			"value_ms", d.Milliseconds(),
		)
	}
}

// NoopMetrics discards all metrics. Used in tests and local development.
type NoopMetrics struct{}

var _ DigestMetrics = NoopMetrics{}

func (NoopMetrics) RecordSend(ctx context.Context, result SendResult)                 {}
func (NoopMetrics) RecordBuildLatency(ctx context.Context, duration time.Duration)    {}
func (NoopMetrics) RecordQueueLag(ctx context.Context, lag time.Duration)             {}
