package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// CompositeProvider aggregates multiple metrics providers and delegates calls
// to all of them, so metrics can flow to CloudWatch and Prometheus at once.
type CompositeProvider struct {
	providers []Provider
}

// NewCompositeProvider creates a new composite provider with the given
// providers. Only enabled providers are included.
func NewCompositeProvider(providers ...Provider) *CompositeProvider {
	enabledProviders := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil && p.Enabled() {
			enabledProviders = append(enabledProviders, p)
		}
	}
	return &CompositeProvider{
		providers: enabledProviders,
	}
}

// Ensure CompositeProvider implements Provider and HTTPProvider interfaces
var _ Provider = (*CompositeProvider)(nil)
var _ HTTPProvider = (*CompositeProvider)(nil)

// Name returns the provider name
func (c *CompositeProvider) Name() string {
	return string(ProviderTypeComposite)
}

// Enabled returns true if at least one provider is enabled
func (c *CompositeProvider) Enabled() bool {
	return len(c.providers) > 0
}

// Providers returns the wrapped providers
func (c *CompositeProvider) Providers() []Provider {
	return c.providers
}

// PutMetric sends a metric to all providers
func (c *CompositeProvider) PutMetric(ctx context.Context, name string, value float64, unit string, dimensions map[string]string) error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.PutMetric(ctx, name, value, unit, dimensions); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Increment increments a counter on all providers
func (c *CompositeProvider) Increment(ctx context.Context, name string, dimensions map[string]string) error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Increment(ctx, name, dimensions); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// RecordDuration records duration on all providers
func (c *CompositeProvider) RecordDuration(ctx context.Context, name string, duration float64, dimensions map[string]string) error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.RecordDuration(ctx, name, duration, dimensions); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// IncEventsReceived records received events on all providers
func (c *CompositeProvider) IncEventsReceived(ctx context.Context, queue string, count int) {
	for _, p := range c.providers {
		p.IncEventsReceived(ctx, queue, count)
	}
}

// IncReportsMapped increments the mapped counter on all providers
func (c *CompositeProvider) IncReportsMapped(ctx context.Context, queue string) {
	for _, p := range c.providers {
		p.IncReportsMapped(ctx, queue)
	}
}

// IncValidationFailures increments validation failures on all providers
func (c *CompositeProvider) IncValidationFailures(ctx context.Context, queue, kind string) {
	for _, p := range c.providers {
		p.IncValidationFailures(ctx, queue, kind)
	}
}

// IncTransientErrors increments transient errors on all providers
func (c *CompositeProvider) IncTransientErrors(ctx context.Context, queue string) {
	for _, p := range c.providers {
		p.IncTransientErrors(ctx, queue)
	}
}

// IncDeleteFailures increments delete failures on all providers
func (c *CompositeProvider) IncDeleteFailures(ctx context.Context, queue string) {
	for _, p := range c.providers {
		p.IncDeleteFailures(ctx, queue)
	}
}

// IncDLQResolved increments the DLQ resolved counter on all providers
func (c *CompositeProvider) IncDLQResolved(ctx context.Context, queue string) {
	for _, p := range c.providers {
		p.IncDLQResolved(ctx, queue)
	}
}

// IncDLQUnresolved increments the DLQ unresolved counter on all providers
func (c *CompositeProvider) IncDLQUnresolved(ctx context.Context, queue string) {
	for _, p := range c.providers {
		p.IncDLQUnresolved(ctx, queue)
	}
}

// ObserveProcessingDuration records processing time on all providers
func (c *CompositeProvider) ObserveProcessingDuration(ctx context.Context, queue string, durationMs float64) {
	for _, p := range c.providers {
		p.ObserveProcessingDuration(ctx, queue, durationMs)
	}
}

// SetQueueDepth records the queue depth gauge on all providers
func (c *CompositeProvider) SetQueueDepth(ctx context.Context, queue string, depth float64) {
	for _, p := range c.providers {
		p.SetQueueDepth(ctx, queue, depth)
	}
}

// SetDLQDepth records the DLQ depth gauge on all providers
func (c *CompositeProvider) SetDLQDepth(ctx context.Context, queue string, depth float64) {
	for _, p := range c.providers {
		p.SetDLQDepth(ctx, queue, depth)
	}
}

// Handler returns the HTTP handler of the first provider exposing one
func (c *CompositeProvider) Handler() http.Handler {
	for _, p := range c.providers {
		if hp, ok := p.(HTTPProvider); ok {
			return hp.Handler()
		}
	}
	return http.NotFoundHandler()
}

// Collectors returns the Prometheus collectors of all wrapped providers
func (c *CompositeProvider) Collectors() []prometheus.Collector {
	var collectors []prometheus.Collector
	for _, p := range c.providers {
		if cp, ok := p.(CollectorProvider); ok {
			collectors = append(collectors, cp.Collectors()...)
		}
	}
	return collectors
}
