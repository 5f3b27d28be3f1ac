// Package tracing sets up OpenTelemetry tracing for deployment runs.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/logger"
)

const (
	// InstrumentationName names the tracer used across the deployer
	InstrumentationName = "github.com/deploymenttheory/n8n-workflow-deployer"

	endpointEnv     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	defaultEndpoint = "localhost:4317"
)

// Config controls trace export
type Config struct {
	Enabled     bool
	Endpoint    string  // OTLP gRPC collector host:port
	Insecure    bool    // plaintext gRPC to the collector
	SampleRatio float64 // fraction of root spans kept, 0..1

	ServiceName    string
	ServiceVersion string
}

// ShutdownFunc flushes pending spans and stops the exporter
type ShutdownFunc func(context.Context) error

// NoopShutdown is returned when tracing is disabled
func NoopShutdown(context.Context) error { return nil }

// Init installs a global tracer provider exporting over OTLP gRPC. With
// tracing disabled it leaves the global no-op provider in place.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return NoopShutdown, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio must be between 0 and 1, got %g", cfg.SampleRatio)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv(endpointEnv)
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp, err := NewProvider(ctx, cfg, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, err
	}
	Install(tp)

	logger.LogInfo("Tracing enabled", map[string]interface{}{
		"endpoint":     endpoint,
		"sample_ratio": cfg.SampleRatio,
	})
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider with the service resource and a
// parent-based ratio sampler. opts attach span processors or exporters.
func NewProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}, opts...)

	return sdktrace.NewTracerProvider(opts...), nil
}

// Install makes tp the global provider and propagates W3C trace context
func Install(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns the deployer's tracer from tp, or from the global provider
// when tp is nil
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}
