// Package metrics records identity service instruments with OpenTelemetry and
// exposes them through a private Prometheus registry.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns the meter provider and the registry it exports into.
// Runtime and process collectors are registered next to the OpenTelemetry
// exporter so one scrape covers both.
type Provider struct {
	namespace     string
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
}

// NewProvider builds a Provider whose instruments are prefixed with namespace.
func NewProvider(namespace string) (*Provider, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return &Provider{
		namespace:     namespace,
		meterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		registry:      registry,
	}, nil
}

// Namespace returns the instrument name prefix.
func (p *Provider) Namespace() string {
	return p.namespace
}

// MeterProvider returns the provider the identity instruments are created from.
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider {
	return p.meterProvider
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		Registry:          p.registry,
		EnableOpenMetrics: true,
	})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
