package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentgate/agentgate/core"
)

// Provider implements core.Telemetry with OpenTelemetry. Constructing one
// installs the global tracer provider and W3C trace-context propagation so
// the package-level helpers (AddSpanEvent, Counter, ...) pick up real spans
// and instruments.
type Provider struct {
	tracer        trace.Tracer
	traceProvider *sdktrace.TracerProvider
}

type providerConfig struct {
	otlpEndpoint string
	stdout       bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

// WithOTLPEndpoint exports traces over OTLP/gRPC to the given endpoint
// (host:port, insecure).
func WithOTLPEndpoint(endpoint string) ProviderOption {
	return func(c *providerConfig) {
		c.otlpEndpoint = endpoint
	}
}

// WithStdoutExporter writes traces to stdout. Intended for local
// development; do not combine with WithOTLPEndpoint.
func WithStdoutExporter() ProviderOption {
	return func(c *providerConfig) {
		c.stdout = true
	}
}

// NewProvider creates an OpenTelemetry provider for the given service name.
// With no options, spans are created but not exported (useful in tests).
func NewProvider(serviceName string, opts ...ProviderOption) (*Provider, error) {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch {
	case cfg.otlpEndpoint != "":
		exporter, err := otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	case cfg.stdout:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{
		tracer:        tp.Tracer(instrumentationName),
		traceProvider: tp,
	}, nil
}

// StartSpan starts a new telemetry span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric records a metric through the package-level counter API.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	flat := make([]string, 0, len(labels)*2)
	for k, v := range labels {
		flat = append(flat, k, v)
	}
	Emit(name, value, flat...)
}

// Shutdown flushes and stops the trace provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.traceProvider.Shutdown(ctx)
}

// otelSpan wraps an OpenTelemetry span to implement core.Span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// Compile-time interface compliance check
var _ core.Telemetry = (*Provider)(nil)
