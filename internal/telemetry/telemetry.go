// Package telemetry wires the optional OpenTelemetry tracing described
// in §9.5: a span per run lifecycle and a child span per stream edit
// attempt, exported via OTLP when configured and a no-op otherwise.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/codexpanel/internal/config"
)

const scopeName = "github.com/nextlevelbuilder/codexpanel"

// Tracer returns the global tracer for this scope. Before Init is
// called (or when tracing is disabled), this is the SDK's built-in
// no-op implementation — callers never need to branch on whether
// tracing is configured.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// Init configures the global TracerProvider from cfg. When cfg.Enabled
// is false, it leaves the default no-op provider in place and returns a
// no-op shutdown func, matching §9.5 "absence of a configured OTLP
// endpoint means tracing is a no-op, never a startup failure".
func Init(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var exp sdktrace.SpanExporter
	var err error
	if cfg.UseHTTP {
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	} else {
		opts := []otlptracegrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
