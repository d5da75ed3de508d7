package metrics

import "context"

// NoopProvider is a no-operation metrics provider that does nothing.
// Used when metrics are disabled or as a fallback.
type NoopProvider struct{}

// NewNoopProvider creates a new no-operation metrics provider
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Ensure NoopProvider implements Provider interface
var _ Provider = (*NoopProvider)(nil)

// Name returns the provider name
func (n *NoopProvider) Name() string {
	return string(ProviderTypeNoop)
}

// Enabled returns false as this provider does nothing
func (n *NoopProvider) Enabled() bool {
	return false
}

// PutMetric does nothing
func (n *NoopProvider) PutMetric(ctx context.Context, name string, value float64, unit string, dimensions map[string]string) error {
	return nil
}

// Increment does nothing
func (n *NoopProvider) Increment(ctx context.Context, name string, dimensions map[string]string) error {
	return nil
}

// RecordDuration does nothing
func (n *NoopProvider) RecordDuration(ctx context.Context, name string, duration float64, dimensions map[string]string) error {
	return nil
}

// IncEventsReceived does nothing
func (n *NoopProvider) IncEventsReceived(ctx context.Context, queue string, count int) {}

// IncReportsMapped does nothing
func (n *NoopProvider) IncReportsMapped(ctx context.Context, queue string) {}

// IncValidationFailures does nothing
func (n *NoopProvider) IncValidationFailures(ctx context.Context, queue, kind string) {}

// IncTransientErrors does nothing
func (n *NoopProvider) IncTransientErrors(ctx context.Context, queue string) {}

// IncDeleteFailures does nothing
func (n *NoopProvider) IncDeleteFailures(ctx context.Context, queue string) {}

// IncDLQResolved does nothing
func (n *NoopProvider) IncDLQResolved(ctx context.Context, queue string) {}

// IncDLQUnresolved does nothing
func (n *NoopProvider) IncDLQUnresolved(ctx context.Context, queue string) {}

// ObserveProcessingDuration does nothing
func (n *NoopProvider) ObserveProcessingDuration(ctx context.Context, queue string, durationMs float64) {
}

// SetQueueDepth does nothing
func (n *NoopProvider) SetQueueDepth(ctx context.Context, queue string, depth float64) {}

// SetDLQDepth does nothing
func (n *NoopProvider) SetDLQDepth(ctx context.Context, queue string, depth float64) {}
