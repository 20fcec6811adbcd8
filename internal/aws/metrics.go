package aws

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsRecorder emits webhook ingress counters to CloudWatch. Emission is
// best-effort: failures are logged and never surfaced to the request path.
type MetricsRecorder struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricsRecorder returns a recorder publishing under the given
// namespace. A nil client disables emission (useful in tests and local runs).
func NewMetricsRecorder(client CloudWatchAPI, namespace string) *MetricsRecorder {
	return &MetricsRecorder{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Count emits a count-of-one metric with an optional EventType dimension.
func (m *MetricsRecorder) Count(ctx context.Context, metricName, eventType string) {
	if m == nil || m.client == nil {
		return
	}
	now := m.nowFunc()
	datum := cwtypes.MetricDatum{
		MetricName: &metricName,
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
		Value:      awsFloat(1),
	}
	if eventType != "" {
		name := "EventType"
		datum.Dimensions = []cwtypes.Dimension{
			{Name: &name, Value: &eventType},
		}
	}
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		log.Printf("[metrics] put metric %s failed: %v", metricName, err)
	}
}

func awsFloat(f float64) *float64 { return &f }
