package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"
)

// CloudWatchProvider handles sending metrics to AWS CloudWatch
type CloudWatchProvider struct {
	client    *cloudwatch.Client
	logger    zerolog.Logger
	namespace string
	enabled   bool
}

// CloudWatchConfig holds configuration for the CloudWatch provider
type CloudWatchConfig struct {
	Enabled   bool
	Namespace string
}

// NewCloudWatchProvider creates a new CloudWatch metrics provider
func NewCloudWatchProvider(client *cloudwatch.Client, cfg CloudWatchConfig, logger zerolog.Logger) *CloudWatchProvider {
	if cfg.Namespace == "" {
		cfg.Namespace = "PetClinic/EventProcessor"
	}
	return &CloudWatchProvider{
		client:    client,
		logger:    logger,
		namespace: cfg.Namespace,
		enabled:   cfg.Enabled,
	}
}

// Ensure CloudWatchProvider implements Provider interface
var _ Provider = (*CloudWatchProvider)(nil)

// Name returns the provider name
func (s *CloudWatchProvider) Name() string {
	return string(ProviderTypeCloudWatch)
}

// Enabled returns whether CloudWatch metrics are enabled
func (s *CloudWatchProvider) Enabled() bool {
	return s.enabled
}

// PutMetric sends a single metric to CloudWatch
func (s *CloudWatchProvider) PutMetric(ctx context.Context, name string, value float64, unit string, dimensions map[string]string) error {
	if !s.enabled {
		return nil
	}

	metric := s.createMetricDatum(name, value, unit, dimensions)

	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: []types.MetricDatum{metric},
	})
	if err != nil {
		s.logger.Warn().
			Str("metric", name).
			Err(err).
			Msg("Failed to put CloudWatch metric")
		return err
	}
	return nil
}

// Increment increments a counter metric
func (s *CloudWatchProvider) Increment(ctx context.Context, name string, dimensions map[string]string) error {
	return s.PutMetric(ctx, name, 1.0, "Count", dimensions)
}

// RecordDuration records a duration metric in milliseconds
func (s *CloudWatchProvider) RecordDuration(ctx context.Context, name string, duration float64, dimensions map[string]string) error {
	return s.PutMetric(ctx, name, duration, "Milliseconds", dimensions)
}

// IncEventsReceived records received events from a receive batch
func (s *CloudWatchProvider) IncEventsReceived(ctx context.Context, queue string, count int) {
	s.PutMetric(ctx, MetricEventsReceived, float64(count), "Count", map[string]string{
		"queue": queue,
	})
}

// IncReportsMapped increments the successful mapping counter
func (s *CloudWatchProvider) IncReportsMapped(ctx context.Context, queue string) {
	s.Increment(ctx, MetricReportsMapped, map[string]string{
		"queue": queue,
	})
}

// IncValidationFailures increments the validation failures counter
func (s *CloudWatchProvider) IncValidationFailures(ctx context.Context, queue, kind string) {
	s.Increment(ctx, MetricValidationFailures, map[string]string{
		"queue": queue,
		"kind":  kind,
	})
}

// IncTransientErrors increments the transient queue errors counter
func (s *CloudWatchProvider) IncTransientErrors(ctx context.Context, queue string) {
	s.Increment(ctx, MetricTransientErrors, map[string]string{
		"queue": queue,
	})
}

// IncDeleteFailures increments the delete failures counter
func (s *CloudWatchProvider) IncDeleteFailures(ctx context.Context, queue string) {
	s.Increment(ctx, MetricDeleteFailures, map[string]string{
		"queue": queue,
	})
}

// IncDLQResolved increments the DLQ resolved counter
func (s *CloudWatchProvider) IncDLQResolved(ctx context.Context, queue string) {
	s.Increment(ctx, MetricDLQResolved, map[string]string{
		"queue": queue,
	})
}

// IncDLQUnresolved increments the DLQ unresolved counter
func (s *CloudWatchProvider) IncDLQUnresolved(ctx context.Context, queue string) {
	s.Increment(ctx, MetricDLQUnresolved, map[string]string{
		"queue": queue,
	})
}

// ObserveProcessingDuration records per-message processing time
func (s *CloudWatchProvider) ObserveProcessingDuration(ctx context.Context, queue string, durationMs float64) {
	s.RecordDuration(ctx, MetricProcessingTime, durationMs, map[string]string{
		"queue": queue,
	})
}

// SetQueueDepth records the primary queue depth gauge
func (s *CloudWatchProvider) SetQueueDepth(ctx context.Context, queue string, depth float64) {
	s.PutMetric(ctx, MetricQueueDepth, depth, "Count", map[string]string{
		"queue": queue,
	})
}

// SetDLQDepth records the DLQ depth gauge
func (s *CloudWatchProvider) SetDLQDepth(ctx context.Context, queue string, depth float64) {
	s.PutMetric(ctx, MetricDLQDepth, depth, "Count", map[string]string{
		"queue": queue,
	})
}

func (s *CloudWatchProvider) createMetricDatum(name string, value float64, unit string, dimensions map[string]string) types.MetricDatum {
	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	standardUnit := types.StandardUnitCount
	switch unit {
	case "Milliseconds":
		standardUnit = types.StandardUnitMilliseconds
	case "Seconds":
		standardUnit = types.StandardUnitSeconds
	}

	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       standardUnit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}
