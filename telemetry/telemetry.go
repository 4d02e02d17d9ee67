// Package telemetry wires OpenTelemetry tracing for the validator.
//
// Initialize installs a global OTLP/HTTP tracer provider when tracing is
// enabled. Code that records spans asks Tracer(ctx) for a tracer, so tests and
// embedding applications can attach their own with WithTracer instead of
// touching the global provider.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/amp-labs/purchase-validator/config"
	"github.com/amp-labs/purchase-validator/logger"
	"github.com/amp-labs/purchase-validator/shutdown"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// InstrumentationName names the tracer used when none is attached to the context.
const InstrumentationName = "github.com/amp-labs/purchase-validator"

var (
	providerMu     sync.Mutex               //nolint:gochecknoglobals
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
)

// Initialize sets up tracing from cfg and flushes it before process shutdown.
// It's a no-op when tracing is disabled or no endpoint is configured.
func Initialize(ctx context.Context, cfg config.Telemetry) error {
	log := logger.Get(ctx)

	if !cfg.Enabled {
		log.Info("OpenTelemetry tracing is disabled")

		return nil
	}

	if cfg.Endpoint == "" {
		log.Warn("OpenTelemetry endpoint not configured, tracing will be disabled")

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	providerMu.Lock()
	previous := tracerProvider
	tracerProvider = provider
	providerMu.Unlock()

	if previous != nil {
		_ = previous.Shutdown(ctx)
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown.BeforeShutdown("telemetry", func(ctx context.Context) {
		if err := Shutdown(ctx); err != nil {
			logger.Get(ctx).Error("failed to shut down tracer provider", "error", err)
		}
	})

	log.Info("OpenTelemetry tracing initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"endpoint", cfg.Endpoint,
	)

	return nil
}

// Shutdown flushes and stops the provider installed by Initialize, if any.
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	provider := tracerProvider
	tracerProvider = nil
	providerMu.Unlock()

	if provider == nil {
		return nil
	}

	logger.Get(ctx).Info("Shutting down OpenTelemetry tracer provider")

	return provider.Shutdown(ctx)
}
