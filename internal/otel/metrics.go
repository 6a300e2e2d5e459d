package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// InstanceID identifies this agent process.
	InstanceID string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "hoststat",
		ExporterType: ExporterNone,
	}
}

// Metrics records the agent's own reporting activity.
type Metrics struct {
	config          *MetricsConfig
	meterProvider   *sdkmetric.MeterProvider
	meter           metric.Meter
	shutdown        func(context.Context) error
	mu              sync.Mutex
	nextIntervalSec atomic.Int64
	intervalGauge   metric.Int64ObservableGauge
	intervalReg     metric.Registration

	reportsSent   metric.Int64Counter
	sendErrors    metric.Int64Counter
	probeDegraded metric.Int64Counter
	payloadBytes  metric.Int64Histogram
}

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.InstanceID, cfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	m.reportsSent, err = m.meter.Int64Counter(
		"hoststat.reports.sent",
		metric.WithDescription("Count of report datagrams handed to the network"),
	)
	if err != nil {
		return fmt.Errorf("failed to create reports sent counter: %w", err)
	}

	m.sendErrors, err = m.meter.Int64Counter(
		"hoststat.send.errors",
		metric.WithDescription("Count of report datagrams that failed to send"),
	)
	if err != nil {
		return fmt.Errorf("failed to create send error counter: %w", err)
	}

	m.probeDegraded, err = m.meter.Int64Counter(
		"hoststat.probe.degraded",
		metric.WithDescription("Count of samples where a metric fell back to its default"),
	)
	if err != nil {
		return fmt.Errorf("failed to create probe degraded counter: %w", err)
	}

	m.payloadBytes, err = m.meter.Int64Histogram(
		"hoststat.payload.bytes",
		metric.WithDescription("Size of encoded report payloads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create payload size histogram: %w", err)
	}

	m.intervalGauge, err = m.meter.Int64ObservableGauge(
		"hoststat.interval.next",
		metric.WithDescription("Sleep before the next report"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create interval gauge: %w", err)
	}

	m.intervalReg, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.intervalGauge, m.nextIntervalSec.Load())
			return nil
		},
		m.intervalGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register interval gauge callback: %w", err)
	}

	return nil
}

// RecordReportSent counts a sent report and records its payload size.
func (m *Metrics) RecordReportSent(ctx context.Context, payloadBytes int) {
	if m.reportsSent == nil {
		return
	}

	m.reportsSent.Add(ctx, 1)
	m.payloadBytes.Record(ctx, int64(payloadBytes))
}

// RecordSendError counts a report that could not be sent.
func (m *Metrics) RecordSendError(ctx context.Context, errorType string) {
	if m.sendErrors == nil {
		return
	}

	m.sendErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
	))
}

// RecordProbeDegraded counts a metric that fell back to its default value.
func (m *Metrics) RecordProbeDegraded(ctx context.Context, metricName string) {
	if m.probeDegraded == nil {
		return
	}

	m.probeDegraded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("metric", metricName),
	))
}

// SetNextInterval sets the value read by the interval gauge callback.
func (m *Metrics) SetNextInterval(d time.Duration) {
	m.nextIntervalSec.Store(int64(d / time.Second))
}

// NextInterval returns the last interval set, truncated to whole seconds.
func (m *Metrics) NextInterval() time.Duration {
	return time.Duration(m.nextIntervalSec.Load()) * time.Second
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.intervalReg != nil {
		if err := m.intervalReg.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister interval callback: %w", err)
		}
		m.intervalReg = nil
	}

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
