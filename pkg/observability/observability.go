// Package observability provides OpenTelemetry tracing and metrics for
// the governance service: decision rate, denial rate, and decision
// latency, plus spans around the engine's operations.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // gRPC endpoint, e.g. "localhost:4317"
	Enabled        bool
	Insecure       bool // dev only
	BatchTimeout   time.Duration
}

// Provider manages trace and metric providers and the governance
// instruments. A disabled provider is a safe no-op.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	decisionCounter metric.Int64Counter
	denialCounter   metric.Int64Counter
	durationHist    metric.Float64Histogram
}

// New creates a provider. When cfg.Enabled is false no exporters are
// created and every recording method is a no-op.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = &Config{ServiceName: "warden", ServiceVersion: "0.0.0-dev"}
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
	}
	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("warden.governance",
		trace.WithInstrumentationVersion(cfg.ServiceVersion),
	)
	meter := otel.Meter("warden.governance",
		metric.WithInstrumentationVersion(cfg.ServiceVersion),
	)
	if err := p.initInstruments(meter); err != nil {
		return nil, fmt.Errorf("init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", cfg.ServiceName, "endpoint", cfg.OTLPEndpoint)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments(meter metric.Meter) error {
	var err error

	p.decisionCounter, err = meter.Int64Counter("warden.decisions.total",
		metric.WithDescription("Total governance decisions made"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return err
	}

	p.denialCounter, err = meter.Int64Counter("warden.denials.total",
		metric.WithDescription("Decisions that blocked the action"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return err
	}

	p.durationHist, err = meter.Float64Histogram("warden.decision.duration",
		metric.WithDescription("Decision latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)
	return err
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown metric provider", "error", err)
		}
	}
	return nil
}

// StartSpan starts a span; a no-op when telemetry is disabled.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if p.tracer == nil {
		return otel.Tracer("warden.governance").Start(ctx, name, opts...)
	}
	return p.tracer.Start(ctx, name, opts...)
}

// RecordDecision records one decision outcome with its latency.
func (p *Provider) RecordDecision(ctx context.Context, allowed bool, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Bool("warden.allowed", allowed),
		attribute.String("warden.status", status),
	)
	if p.decisionCounter != nil {
		p.decisionCounter.Add(ctx, 1, attrs)
	}
	if !allowed && p.denialCounter != nil {
		p.denialCounter.Add(ctx, 1, attrs)
	}
	if p.durationHist != nil {
		p.durationHist.Record(ctx, duration.Seconds(), attrs)
	}
}
