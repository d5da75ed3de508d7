package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// PrometheusProvider handles exposing metrics to Prometheus
type PrometheusProvider struct {
	logger    zerolog.Logger
	namespace string
	subsystem string
	enabled   bool

	// Custom registry (if provided)
	registry prometheus.Registerer
	gatherer prometheus.Gatherer

	// Counters
	eventsReceived     *prometheus.CounterVec
	reportsMapped      *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	transientErrors    *prometheus.CounterVec
	deleteFailures     *prometheus.CounterVec
	dlqResolved        *prometheus.CounterVec
	dlqUnresolved      *prometheus.CounterVec

	// Gauges
	queueDepth *prometheus.GaugeVec
	dlqDepth   *prometheus.GaugeVec

	// Histograms
	processingDuration *prometheus.HistogramVec

	// Track if already registered
	registered bool
	mu         sync.Mutex
}

// PrometheusConfig holds configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled   bool
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer // optional, defaults to prometheus.DefaultRegisterer
}

// NewPrometheusProvider creates a new Prometheus metrics provider
func NewPrometheusProvider(logger zerolog.Logger, cfg PrometheusConfig) *PrometheusProvider {
	if cfg.Namespace == "" {
		cfg.Namespace = "petclinic"
	}

	s := &PrometheusProvider{
		logger:    logger,
		namespace: cfg.Namespace,
		subsystem: cfg.Subsystem,
		registry:  cfg.Registry,
		enabled:   cfg.Enabled,
	}

	if cfg.Registry != nil {
		if reg, ok := cfg.Registry.(*prometheus.Registry); ok {
			s.gatherer = reg
		}
	}

	s.initMetrics()
	return s
}

// Ensure PrometheusProvider implements Provider, HTTPProvider, and CollectorProvider interfaces
var _ Provider = (*PrometheusProvider)(nil)
var _ HTTPProvider = (*PrometheusProvider)(nil)
var _ CollectorProvider = (*PrometheusProvider)(nil)

// Name returns the provider name
func (s *PrometheusProvider) Name() string {
	return string(ProviderTypePrometheus)
}

// Enabled returns whether Prometheus metrics are enabled
func (s *PrometheusProvider) Enabled() bool {
	return s.enabled
}

func (s *PrometheusProvider) initMetrics() {
	s.eventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "events_received_total",
			Help:      "Total number of appointment events received from the queue",
		},
		[]string{"queue"},
	)

	s.reportsMapped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "reports_mapped_total",
			Help:      "Total number of events validated, mapped, and acknowledged",
		},
		[]string{"queue"},
	)

	s.validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "validation_failures_total",
			Help:      "Total number of events rejected by validation",
		},
		[]string{"queue", "kind"},
	)

	s.transientErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "transient_queue_errors_total",
			Help:      "Total number of queue operations that failed after bounded retries",
		},
		[]string{"queue"},
	)

	s.deleteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "delete_failures_total",
			Help:      "Total number of message deletes that failed",
		},
		[]string{"queue"},
	)

	s.dlqResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "dlq_messages_resolved_total",
			Help:      "Total number of DLQ messages reprocessed successfully",
		},
		[]string{"queue"},
	)

	s.dlqUnresolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "dlq_messages_unresolved_total",
			Help:      "Total number of DLQ messages left for operator investigation",
		},
		[]string{"queue"},
	)

	s.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "queue_depth",
			Help:      "Current approximate number of messages in the primary queue",
		},
		[]string{"queue"},
	)

	s.dlqDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "dlq_depth",
			Help:      "Current approximate number of messages in the dead letter queue",
		},
		[]string{"queue"},
	)

	s.processingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: s.namespace,
			Subsystem: s.subsystem,
			Name:      "processing_duration_milliseconds",
			Help:      "Per-message validate and map duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"queue"},
	)
}

// Collectors returns all Prometheus collectors for registration
func (s *PrometheusProvider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.eventsReceived,
		s.reportsMapped,
		s.validationFailures,
		s.transientErrors,
		s.deleteFailures,
		s.dlqResolved,
		s.dlqUnresolved,
		s.queueDepth,
		s.dlqDepth,
		s.processingDuration,
	}
}

// Register registers all collectors with the configured registry
func (s *PrometheusProvider) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}

	registry := s.registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	for _, c := range s.Collectors() {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	s.registered = true
	return nil
}

// Handler returns an HTTP handler serving the metrics endpoint
func (s *PrometheusProvider) Handler() http.Handler {
	if s.gatherer != nil {
		return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// PutMetric is a no-op for Prometheus; use the typed methods instead
func (s *PrometheusProvider) PutMetric(ctx context.Context, name string, value float64, unit string, dimensions map[string]string) error {
	return nil
}

// Increment is a no-op for Prometheus; use the typed methods instead
func (s *PrometheusProvider) Increment(ctx context.Context, name string, dimensions map[string]string) error {
	return nil
}

// RecordDuration is a no-op for Prometheus; use the typed methods instead
func (s *PrometheusProvider) RecordDuration(ctx context.Context, name string, duration float64, dimensions map[string]string) error {
	return nil
}

// IncEventsReceived records received events from a receive batch
func (s *PrometheusProvider) IncEventsReceived(ctx context.Context, queue string, count int) {
	if !s.enabled {
		return
	}
	s.eventsReceived.WithLabelValues(queue).Add(float64(count))
}

// IncReportsMapped increments the successful mapping counter
func (s *PrometheusProvider) IncReportsMapped(ctx context.Context, queue string) {
	if !s.enabled {
		return
	}
	s.reportsMapped.WithLabelValues(queue).Inc()
}

// IncValidationFailures increments the validation failures counter
func (s *PrometheusProvider) IncValidationFailures(ctx context.Context, queue, kind string) {
	if !s.enabled {
		return
	}
	s.validationFailures.WithLabelValues(queue, kind).Inc()
}

// IncTransientErrors increments the transient queue errors counter
func (s *PrometheusProvider) IncTransientErrors(ctx context.Context, queue string) {
	if !s.enabled {
		return
	}
	s.transientErrors.WithLabelValues(queue).Inc()
}

// IncDeleteFailures increments the delete failures counter
func (s *PrometheusProvider) IncDeleteFailures(ctx context.Context, queue string) {
	if !s.enabled {
		return
	}
	s.deleteFailures.WithLabelValues(queue).Inc()
}

// IncDLQResolved increments the DLQ resolved counter
func (s *PrometheusProvider) IncDLQResolved(ctx context.Context, queue string) {
	if !s.enabled {
		return
	}
	s.dlqResolved.WithLabelValues(queue).Inc()
}

// IncDLQUnresolved increments the DLQ unresolved counter
func (s *PrometheusProvider) IncDLQUnresolved(ctx context.Context, queue string) {
	if !s.enabled {
		return
	}
	s.dlqUnresolved.WithLabelValues(queue).Inc()
}

// ObserveProcessingDuration records per-message processing time
func (s *PrometheusProvider) ObserveProcessingDuration(ctx context.Context, queue string, durationMs float64) {
	if !s.enabled {
		return
	}
	s.processingDuration.WithLabelValues(queue).Observe(durationMs)
}

// SetQueueDepth records the primary queue depth gauge
func (s *PrometheusProvider) SetQueueDepth(ctx context.Context, queue string, depth float64) {
	if !s.enabled {
		return
	}
	s.queueDepth.WithLabelValues(queue).Set(depth)
}

// SetDLQDepth records the DLQ depth gauge
func (s *PrometheusProvider) SetDLQDepth(ctx context.Context, queue string, depth float64) {
	if !s.enabled {
		return
	}
	s.dlqDepth.WithLabelValues(queue).Set(depth)
}
