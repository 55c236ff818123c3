// Package telemetry exposes daemon metrics through go-metrics with a
// Prometheus sink. Counters and gauges are emitted through the package
// helpers so callers never hold a reference to the sink.
package telemetry

import (
	"fmt"
	"net/http"
	"time"

	metrics "github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ServiceName = "oracled"

// metric keys
const (
	MetricQueue     = "queue"
	MetricScheduler = "scheduler"
	MetricSigner    = "signer"
	MetricAPI       = "api"

	MetricPending   = "pending"
	MetricHistory   = "history"
	MetricSubmitted = "submitted"
	MetricRequeued  = "requeued"
	MetricDropped   = "dropped"
	MetricDeferred  = "deferred"
	MetricSkipped   = "skipped"
	MetricRejected  = "rejected"
	MetricLatency   = "latency"
	MetricFailures  = "consecutive_failures"
)

// Metrics owns a private Prometheus registry so multiple instances (tests,
// restarts) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry
	sink     *metricsprom.PrometheusSink
	inner    *metrics.Metrics
}

// New installs a Prometheus backed sink as the global go-metrics sink.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}

	sink, err := metricsprom.NewPrometheusSinkFrom(metricsprom.PrometheusOpts{
		Registerer: registry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus sink: %w", err)
	}

	cfg := metrics.DefaultConfig(ServiceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false

	inner, err := metrics.NewGlobal(cfg, sink)
	if err != nil {
		return nil, fmt.Errorf("failed to create global metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		sink:     sink,
		inner:    inner,
	}, nil
}

// Handler serves the Prometheus text exposition of this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Gather() ([]string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names, nil
}

func IncrCounter(val float32, keys ...string) {
	metrics.IncrCounter(keys, val)
}

func SetGauge(val float32, keys ...string) {
	metrics.SetGauge(keys, val)
}

// MeasureSince records the elapsed time since start in milliseconds.
func MeasureSince(start time.Time, keys ...string) {
	metrics.MeasureSince(keys, start)
}
