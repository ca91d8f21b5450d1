package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// logExporter writes finished spans to the debug log.
type logExporter struct {
	log *zap.Logger
}

var _ sdktrace.SpanExporter = logExporter{}

func (e logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.log.Debug("span",
			zap.String("name", s.Name()),
			zap.Stringer("trace_id", s.SpanContext().TraceID()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		)
	}
	return nil
}

func (e logExporter) Shutdown(context.Context) error { return nil }

// newTracerProvider samples every frame in development and one in a hundred otherwise.
func newTracerProvider(log *zap.Logger, runID string, development bool) *sdktrace.TracerProvider {
	sampler := sdktrace.TraceIDRatioBased(0.01)
	if development {
		sampler = sdktrace.AlwaysSample()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(logExporter{log: log.Named("trace")}),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName("oxy-particles"),
			semconv.ServiceInstanceID(runID),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	return tp
}
