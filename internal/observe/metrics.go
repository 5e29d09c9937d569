// Package observe records cache and pipeline metrics with OpenTelemetry
// and exposes them in the Prometheus text format.
package observe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/popup"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName is the instrumentation scope of every instrument.
const MeterName = "github.com/roasbeef/canvasrca"

// Metrics holds the instruments. It implements cache.Recorder and
// popup.Recorder.
type Metrics struct {
	lookups   metric.Int64Counter
	evictions metric.Int64Counter
	pipelines metric.Int64Counter
	duration  metric.Float64Histogram
}

var (
	_ cache.Recorder = (*Metrics)(nil)
	_ popup.Recorder = (*Metrics)(nil)
)

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	lookups, err := meter.Int64Counter(
		"rca.cache.lookups",
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"rca.cache.evictions",
		metric.WithDescription("Cache records removed by maintenance"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	pipelines, err := meter.Int64Counter(
		"rca.pipeline.runs",
		metric.WithDescription("Summarize pipeline runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"rca.pipeline.duration_ms",
		metric.WithDescription("Summarize pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lookups:   lookups,
		evictions: evictions,
		pipelines: pipelines,
		duration:  duration,
	}, nil
}

// RecordLookup counts a cache read.
func (m *Metrics) RecordLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordEviction counts records removed for reason.
func (m *Metrics) RecordEviction(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}

	m.evictions.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordPipeline counts a pipeline run and records its duration.
func (m *Metrics) RecordPipeline(ctx context.Context, outcome string,
	elapsed time.Duration) {

	opt := metric.WithAttributes(attribute.String("outcome", outcome))
	m.pipelines.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(elapsed.Milliseconds()), opt)
}

// Provider bundles a meter provider whose reader is a Prometheus exporter
// registered on a private registry.
type Provider struct {
	*Metrics

	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewProvider builds the exporter, the meter provider and the instruments.
func NewProvider() (*Provider, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	metrics, err := NewMetrics(provider.Meter(MeterName))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("instruments: %w", err)
	}

	return &Provider{
		Metrics:  metrics,
		registry: registry,
		provider: provider,
	}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
