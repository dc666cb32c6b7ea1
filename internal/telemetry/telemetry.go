// Package telemetry builds the OpenTelemetry providers used by the vizweb host.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pdrpinto/gridastar/internal/config"
)

// ErrUnknownExporter is returned for exporter names Init does not handle.
var ErrUnknownExporter = errors.New("unknown exporter")

// Providers holds the SDK providers and the /metrics handler, if any.
type Providers struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	// MetricsHandler is nil unless the prometheus exporter is selected.
	MetricsHandler http.Handler
}

// Init creates meter and tracer providers for cfg. Trace output for the
// stdout exporter goes to traceOut.
//
// Each call uses its own prometheus registry, so Init can run more than once
// in a process.
func Init(_ context.Context, cfg config.TelemetryConfig, traceOut io.Writer) (*Providers, error) {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	providers := &Providers{}

	switch cfg.MetricExporter {
	case "prometheus":
		registry := prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		providers.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	case "none":
		providers.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		providers.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSyncer(exporter),
		)
	case "none":
		providers.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	return providers, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.MeterProvider.Shutdown(ctx),
		p.TracerProvider.Shutdown(ctx),
	)
}
