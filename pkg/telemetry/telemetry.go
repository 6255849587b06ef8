// Package telemetry exposes search and HTTP metrics through an OpenTelemetry
// meter backed by a Prometheus registry.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	prometheusotel "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/japaniel/kotoba/pkg/cache"
	"github.com/japaniel/kotoba/pkg/search"
)

const namespace = "kotoba"

// Telemetry records service metrics. A nil or disabled Telemetry ignores
// every call, so callers never need to check.
type Telemetry struct {
	enabled bool
	logger  *slog.Logger

	registry *prometheus.Registry
	handler  http.Handler
	provider *sdkmetric.MeterProvider

	searchOps     metric.Int64Counter
	searchResults metric.Int64Histogram
	searchLatency metric.Float64Histogram
	httpRequests  metric.Int64Counter
	httpLatency   metric.Float64Histogram
}

var _ search.Metrics = (*Telemetry)(nil)

// New builds the meter provider and registry. With enabled false it returns
// a Telemetry that records nothing.
func New(logger *slog.Logger, enabled bool) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Telemetry{enabled: enabled, logger: logger.With("component", "telemetry")}
	if !enabled {
		return t, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := prometheusotel.New(prometheusotel.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(namespace)

	if t.searchOps, err = meter.Int64Counter("search_requests_total",
		metric.WithDescription("Search operations by mode and outcome")); err != nil {
		return nil, err
	}
	if t.searchResults, err = meter.Int64Histogram("search_results",
		metric.WithDescription("Grouped results returned per search")); err != nil {
		return nil, err
	}
	if t.searchLatency, err = meter.Float64Histogram("search_latency_ms",
		metric.WithDescription("Latency of search operations"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if t.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total HTTP requests")); err != nil {
		return nil, err
	}
	if t.httpLatency, err = meter.Float64Histogram("http_request_duration_ms",
		metric.WithDescription("Latency of HTTP requests"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	t.registry = registry
	t.provider = provider
	t.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	t.logger.Info("telemetry initialized", "prometheus", true)
	return t, nil
}

// Enabled reports whether metrics are being collected.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.enabled
}

// RecordSearch implements search.Metrics.
func (t *Telemetry) RecordSearch(ctx context.Context, mode string, outcome search.Outcome, results int, d time.Duration) {
	if !t.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", modeLabel(mode)),
		attribute.String("outcome", string(outcome)),
	)
	t.searchOps.Add(ctx, 1, attrs)
	t.searchResults.Record(ctx, int64(results), attrs)
	t.searchLatency.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

// RecordRequest counts one finished HTTP request.
func (t *Telemetry) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if !t.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	t.httpRequests.Add(ctx, 1, attrs)
	t.httpLatency.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

// ObserveCache exports the counters reported by stats on every scrape.
func (t *Telemetry) ObserveCache(stats func() cache.Stats) {
	if !t.Enabled() {
		return
	}
	t.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Search cache hits",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Search cache misses",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Search cache evictions",
		}, func() float64 { return float64(stats().Evictions) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries",
			Help: "Responses currently cached",
		}, func() float64 { return float64(stats().Entries) }),
	)
}

// ObserveDictionary publishes the size of the loaded dictionary.
func (t *Telemetry) ObserveDictionary(entries, furigana, tagCount int) {
	if !t.Enabled() {
		return
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "dictionary", Name: "records",
		Help: "Records loaded into the dictionary by kind",
	}, []string{"kind"})
	t.registry.MustRegister(g)
	g.WithLabelValues("entries").Set(float64(entries))
	g.WithLabelValues("furigana").Set(float64(furigana))
	g.WithLabelValues("tags").Set(float64(tagCount))
}

// Handler serves the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	if !t.Enabled() {
		return http.NotFoundHandler()
	}
	return t.handler
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// modeLabel keeps arbitrary client input out of metric labels.
func modeLabel(mode string) string {
	if search.Mode(mode).Valid() {
		return mode
	}
	if mode == "" {
		return "none"
	}
	return "other"
}
