package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const tracerKey contextKey = "tracer"

// WithTracer attaches a tracer to ctx. Tracer(ctx) returns it from then on.
func WithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	if tracer == nil {
		return ctx
	}

	return context.WithValue(ctx, tracerKey, tracer)
}

// TracerFromContext returns the tracer attached with WithTracer, if any.
func TracerFromContext(ctx context.Context) (trace.Tracer, bool) { //nolint:ireturn
	if ctx == nil {
		return nil, false
	}

	tracer, ok := ctx.Value(tracerKey).(trace.Tracer)

	return tracer, ok
}

// Tracer returns the tracer attached to ctx, or the global provider's tracer.
func Tracer(ctx context.Context) trace.Tracer { //nolint:ireturn
	if tracer, ok := TracerFromContext(ctx); ok {
		return tracer
	}

	return otel.Tracer(InstrumentationName)
}
