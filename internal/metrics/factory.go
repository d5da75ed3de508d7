package metrics

import (
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/rs/zerolog"
)

// FactoryConfig holds everything needed to assemble the metrics pipeline.
type FactoryConfig struct {
	CloudWatch       CloudWatchConfig
	CloudWatchClient *cloudwatch.Client
	Prometheus       PrometheusConfig
	Logger           zerolog.Logger
}

// Build assembles a Provider from the enabled backends. With no backend
// enabled it returns a NoopProvider so callers never need a nil check.
func Build(cfg FactoryConfig) Provider {
	var providers []Provider

	if cfg.CloudWatch.Enabled && cfg.CloudWatchClient != nil {
		providers = append(providers, NewCloudWatchProvider(cfg.CloudWatchClient, cfg.CloudWatch, cfg.Logger))
	}
	if cfg.Prometheus.Enabled {
		prom := NewPrometheusProvider(cfg.Logger, cfg.Prometheus)
		if err := prom.Register(); err != nil {
			cfg.Logger.Warn().Err(err).Msg("Failed to register Prometheus collectors")
		} else {
			providers = append(providers, prom)
		}
	}

	composite := NewCompositeProvider(providers...)
	if !composite.Enabled() {
		cfg.Logger.Debug().Msg("No metrics providers enabled, using noop provider")
		return NewNoopProvider()
	}

	names := make([]string, 0, len(composite.Providers()))
	for _, p := range composite.Providers() {
		names = append(names, p.Name())
	}
	cfg.Logger.Info().Strs("providers", names).Msg("Metrics providers initialized")
	return composite
}
