package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type captureLogger struct {
	errs []string
}

func (l *captureLogger) Info(msg string, args ...any)  {}
func (l *captureLogger) Error(msg string, args ...any) { l.errs = append(l.errs, msg) }
func (l *captureLogger) Warn(msg string, args ...any)  {}
func (l *captureLogger) With(args ...any) types.Logger { return l }

func TestRecordSend_EmitsResultDimension(t *testing.T) {
	cw := &mockCloudWatch{}
	m := NewCloudWatchDigestMetrics(cw, &captureLogger{})

	m.RecordSend(context.Background(), ResultSuccess)

	require.Len(t, cw.inputs, 1)
	input := cw.inputs[0]
	assert.Equal(t, Namespace, *input.Namespace)
	require.Len(t, input.MetricData, 1)
	assert.Equal(t, MetricSendAttempt, *input.MetricData[0].MetricName)
	require.Len(t, input.MetricData[0].Dimensions, 1)
	assert.Equal(t, "success", *input.MetricData[0].Dimensions[0].Value)
}

func TestRecordQueueLag_Milliseconds(t *testing.T) {
	cw := &mockCloudWatch{}
	m := NewCloudWatchDigestMetrics(cw, &captureLogger{})

	m.RecordQueueLag(context.Background(), 2500*time.Millisecond)

	require.Len(t, cw.inputs, 1)
	assert.Equal(t, MetricQueueLag, *cw.inputs[0].MetricData[0].MetricName)
	assert.Equal(t, float64(2500), *cw.inputs[0].MetricData[0].Value)
}

func TestRecordBuildLatency_Milliseconds(t *testing.T) {
	cw := &mockCloudWatch{}
	m := NewCloudWatchDigestMetrics(cw, &captureLogger{})

	m.RecordBuildLatency(context.Background(), 750*time.Millisecond)

	require.Len(t, cw.inputs, 1)
	assert.Equal(t, MetricBuildLatency, *cw.inputs[0].MetricData[0].MetricName)
	assert.Equal(t, float64(750), *cw.inputs[0].MetricData[0].Value)
}

func TestMetrics_PutFailureDoesNotPanic(t *testing.T) {
	cw := &mockCloudWatch{err: errors.New("throttled")}
	logger := &captureLogger{}
	m := NewCloudWatchDigestMetrics(cw, logger)

	m.RecordSend(context.Background(), ResultDropped)
	m.RecordQueueLag(context.Background(), time.Second)

	assert.Len(t, logger.errs, 2)
}
