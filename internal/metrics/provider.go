// Package metrics provides metrics integration for the event processor
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names shared across providers
const (
	MetricEventsReceived     = "EventsReceived"
	MetricReportsMapped      = "ReportsMapped"
	MetricValidationFailures = "ValidationFailures"
	MetricTransientErrors    = "TransientQueueErrors"
	MetricDeleteFailures     = "DeleteFailures"
	MetricDLQResolved        = "DLQMessagesResolved"
	MetricDLQUnresolved      = "DLQMessagesUnresolved"
	MetricProcessingTime     = "ProcessingTime"
	MetricQueueDepth         = "QueueDepth"
	MetricDLQDepth           = "DLQDepth"
)

// Provider defines the unified interface for all metrics providers.
// Implementations include CloudWatch, Prometheus, Noop, and Composite.
type Provider interface {
	// Core metrics methods
	PutMetric(ctx context.Context, name string, value float64, unit string, dimensions map[string]string) error
	Increment(ctx context.Context, name string, dimensions map[string]string) error
	RecordDuration(ctx context.Context, name string, duration float64, dimensions map[string]string) error

	// Convenience methods for the processing pipeline
	IncEventsReceived(ctx context.Context, queue string, count int)
	IncReportsMapped(ctx context.Context, queue string)
	IncValidationFailures(ctx context.Context, queue, kind string)
	IncTransientErrors(ctx context.Context, queue string)
	IncDeleteFailures(ctx context.Context, queue string)
	IncDLQResolved(ctx context.Context, queue string)
	IncDLQUnresolved(ctx context.Context, queue string)

	// Duration recording
	ObserveProcessingDuration(ctx context.Context, queue string, durationMs float64)

	// Gauge operations
	SetQueueDepth(ctx context.Context, queue string, depth float64)
	SetDLQDepth(ctx context.Context, queue string, depth float64)

	// Provider info
	Name() string
	Enabled() bool
}

// HTTPProvider is an optional interface for providers that expose HTTP handlers (e.g., Prometheus)
type HTTPProvider interface {
	Provider
	Handler() http.Handler
}

// CollectorProvider is an optional interface for providers that expose Prometheus collectors
type CollectorProvider interface {
	Provider
	Collectors() []prometheus.Collector
	Register() error
}

// ProviderType represents the type of metrics provider
type ProviderType string

const (
	ProviderTypeCloudWatch ProviderType = "cloudwatch"
	ProviderTypePrometheus ProviderType = "prometheus"
	ProviderTypeNoop       ProviderType = "noop"
	ProviderTypeComposite  ProviderType = "composite"
)
