package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dwsmith1983/faultline/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// TracerName scopes faultline spans.
const TracerName = "github.com/dwsmith1983/faultline"

// Telemetry bundles the providers built from configuration.
type Telemetry struct {
	Meter    metric.MeterProvider
	Tracer   trace.Tracer
	Recorder *Recorder
	// Handler serves /metrics when the Prometheus exporter is active; nil otherwise.
	Handler http.Handler

	shutdown []func(context.Context) error
}

// Init builds meter and tracer providers for the configured exporters.
func Init(ctx context.Context, version string, mc types.MetricsConfig, tc types.TracingConfig) (*Telemetry, error) {
	res := resource.NewWithAttributes("",
		attribute.String("service.name", "faultline"),
		attribute.String("service.version", version),
	)
	t := &Telemetry{}

	switch mc.Exporter {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exp, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
		t.Meter = mp
		t.Handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		t.shutdown = append(t.shutdown, mp.Shutdown)
	case "otlp":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if mc.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(mc.OTLPEndpoint))
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		t.Meter = mp
		t.shutdown = append(t.shutdown, mp.Shutdown)
	default:
		t.Meter = noop.NewMeterProvider()
	}

	switch tc.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if tc.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(tc.OTLPEndpoint))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
		t.Tracer = tp.Tracer(TracerName)
		t.shutdown = append(t.shutdown, tp.Shutdown)
	default:
		t.Tracer = tracenoop.NewTracerProvider().Tracer(TracerName)
	}

	rec, err := NewRecorder(t.Meter)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.Recorder = rec
	return t, nil
}

// Shutdown flushes and stops every provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
