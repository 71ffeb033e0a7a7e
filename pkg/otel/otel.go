// Package otel configures OpenTelemetry tracing and offers helpers for
// carrying a tracer through request contexts.
package otel

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"ordermgmt/pkg/logger"
)

// Config defines the tracing setup.
type Config struct {
	ServiceName string
	// Host is the OTLP gRPC collector endpoint. Spans are still created when
	// empty, they are just not exported.
	Host        string
	Probability float64
}

// InitTracing installs a global tracer provider. The returned function
// flushes and stops the provider.
func InitTracing(log *logger.Logger, cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	ctx := context.Background()

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Probability))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	}

	if cfg.Host != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Host),
		)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating otlp exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		log.Info(ctx, "tracing exporter enabled", "host", cfg.Host, "probability", cfg.Probability)
	} else {
		log.Info(ctx, "tracing exporter disabled")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, tp.Shutdown, nil
}

type ctxKey int

const tracerKey ctxKey = 1

// InjectTracing stores the tracer in ctx so AddSpan can find it.
func InjectTracing(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, tracer)
}

// ExtractHeaders continues a trace propagated through the request headers.
func ExtractHeaders(ctx context.Context, h http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}

// AddSpan starts a child span using the tracer stored in ctx, or a no-op
// tracer when none was injected.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer, ok := ctx.Value(tracerKey).(trace.Tracer)
	if !ok || tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	ctx, span := tracer.Start(ctx, spanName)
	span.SetAttributes(keyValues...)
	return ctx, span
}

// GetTraceID returns the trace id of the span in ctx, or the all-zero id.
func GetTraceID(ctx context.Context) string {
	return trace.SpanContextFromContext(ctx).TraceID().String()
}
