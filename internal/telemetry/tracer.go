// SPDX-License-Identifier: MIT

// Package telemetry owns the OpenTelemetry TracerProvider the rest of the
// engine's otel.Tracer calls (internal/hostclient, internal/httpapi's
// otelhttp wrapping) resolve against. It deliberately stops short of
// wiring an OTLP exporter: this engine has no collector endpoint in its
// settings surface, so spans are sampled and recorded in-process and
// exported nowhere until one is added, matching a disabled-by-default
// ambient concern rather than a fully wired export pipeline.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls tracer provider construction.
type Config struct {
	// Enabled turns on the SDK tracer provider. When false, the global
	// tracer provider is a no-op and every otel.Tracer call anywhere in
	// the engine is free.
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// SamplingRate is in [0,1]; 0 samples nothing, 1 samples everything.
	SamplingRate float64
}

// Provider owns the process-lifetime SDK tracer provider, if one was
// constructed.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs the global tracer provider described by cfg and
// returns a handle for later Shutdown.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Shutdown flushes and releases the tracer provider. A no-op Provider
// (telemetry disabled) returns nil immediately.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// Tracer returns a tracer for the given instrumentation name.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
