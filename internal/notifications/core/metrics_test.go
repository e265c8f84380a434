package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"courier/internal/types"
)

type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchMetrics_RecordAttempt(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", &mockLogger{})

	m.RecordAttempt(context.Background(), "email", types.AdapterEmailSES, MetricRetry)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("namespace = %q, want %q", *input.Namespace, types.MetricNamespace)
	}
	datum := input.MetricData[0]
	if *datum.MetricName != types.MetricDeliveryAttempt {
		t.Errorf("metric name = %q", *datum.MetricName)
	}
	if datum.Unit != cwtypes.StandardUnitCount {
		t.Errorf("unit = %s, want Count", datum.Unit)
	}
	assertDimension(t, datum.Dimensions, types.DimChannel, "email")
	assertDimension(t, datum.Dimensions, types.DimAdapter, "email.ses")
	assertDimension(t, datum.Dimensions, types.DimResult, "retry")
}

func TestCloudWatchMetrics_RecordLatency(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "CourierStaging", &mockLogger{})

	m.RecordLatency(context.Background(), "sms", 1500*time.Millisecond)

	input := cw.calls[0]
	if *input.Namespace != "CourierStaging" {
		t.Errorf("namespace = %q", *input.Namespace)
	}
	datum := input.MetricData[0]
	if *datum.MetricName != types.MetricDeliveryLatency {
		t.Errorf("metric name = %q", *datum.MetricName)
	}
	if *datum.Value != 1500 {
		t.Errorf("value = %f, want 1500", *datum.Value)
	}
	if datum.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("unit = %s, want Milliseconds", datum.Unit)
	}
}

func TestCloudWatchMetrics_ErrorIsLoggedNotReturned(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	logger := &mockLogger{}
	m := NewCloudWatchMetrics(cw, "", logger)

	m.RecordAttempt(context.Background(), "email", types.AdapterEmailSES, MetricSent)

	if !logger.has("error:failed to publish metric") {
		t.Errorf("expected error log, got %v", logger.messages)
	}
}

func TestCloudWatchMetrics_Outbox(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "CourierTest", &mockLogger{})

	m.RecordOutboxPublished(context.Background(), 7)
	m.RecordOutboxLag(context.Background(), 1500*time.Millisecond)

	if len(cw.calls) != 2 {
		t.Fatalf("expected 2 PutMetricData calls, got %d", len(cw.calls))
	}
	published := cw.calls[0].MetricData[0]
	if *published.MetricName != types.MetricOutboxPublished || *published.Value != 7 {
		t.Errorf("published datum = %s/%v", *published.MetricName, *published.Value)
	}
	lag := cw.calls[1].MetricData[0]
	if *lag.MetricName != types.MetricOutboxLag || *lag.Value != 1.5 || lag.Unit != cwtypes.StandardUnitSeconds {
		t.Errorf("lag datum = %s/%v/%s", *lag.MetricName, *lag.Value, lag.Unit)
	}
	if *cw.calls[1].Namespace != "CourierTest" {
		t.Errorf("namespace = %q", *cw.calls[1].Namespace)
	}
}

func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, want string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != want {
				t.Errorf("dimension %s = %q, want %q", name, *d.Value, want)
			}
			return
		}
	}
	t.Errorf("dimension %s not found", name)
}
