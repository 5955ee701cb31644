// Package telemetry wires OpenTelemetry tracing for the service.
package telemetry

import (
	"context"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Setup registers a global tracer provider exporting to the OTLP/HTTP
// endpoint in s.Telemetry.
//
// Tracing is opt-in: when OTEL_ENDPOINT is empty or OTEL_ENABLED is false,
// Setup returns a no-op shutdown function and registers nothing. The
// returned shutdown function should be deferred by the caller.
func Setup(ctx context.Context, s *config.Settings) (ShutdownFunc, error) {
	const op errors.Op = "telemetry.Setup"
	noop := func(context.Context) error { return nil }

	if s == nil || !s.Telemetry.Enabled || s.Telemetry.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(s.Telemetry.Endpoint),
	)
	if err != nil {
		return noop, errors.New(op).Err(err).Msg("Failed to create trace exporter.")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.App.Name),
			semconv.ServiceVersion(s.App.Version),
		),
	)
	if err != nil {
		return noop, errors.New(op).Err(err).Msg("Failed to build trace resource.")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
