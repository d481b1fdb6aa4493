package metrics

import (
	"context"
	"fmt"
	"net/http"

	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	metrics "github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	logger "github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Metric backends and exporters accepted in TelemetryConfig.
const (
	BackendPrometheus = "prometheus"
	BackendOTel       = "otel"
	BackendNone       = "none"

	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterNone     = "none"
)

const instrumentationName = "github.com/tigerroll/sequencer"

// Telemetry holds the recorder and tracer selected by configuration.
type Telemetry struct {
	Recorder metrics.MetricRecorder
	Tracer   metrics.Tracer

	prometheus *PrometheusRecorder
	shutdown   []func(context.Context) error
}

// NewTelemetry builds the metric recorder and the tracer described by cfg.
func NewTelemetry(ctx context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	t := &Telemetry{}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName(cfg)))

	switch cfg.MetricsBackend {
	case BackendPrometheus:
		t.prometheus = NewPrometheusRecorder()
		t.Recorder = t.prometheus
	case BackendOTel:
		exporter, err := newMetricExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
			sdkmetric.WithResource(res),
		)
		t.shutdown = append(t.shutdown, provider.Shutdown)
		recorder, err := NewOpenTelemetryRecorder(provider.Meter(instrumentationName))
		if err != nil {
			return nil, err
		}
		t.Recorder = recorder
	case BackendNone, "":
		t.Recorder = metrics.NewNoOpMetricRecorder()
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", cfg.MetricsBackend)
	}

	switch cfg.TracesExporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		exporter, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
		otel.SetTracerProvider(provider)
		t.shutdown = append(t.shutdown, provider.Shutdown)
		t.Tracer = NewOpenTelemetryTracer(provider.Tracer(instrumentationName))
	case ExporterNone, "":
		t.Tracer = metrics.NewNoOpTracer()
	default:
		return nil, fmt.Errorf("unknown traces exporter %q", cfg.TracesExporter)
	}

	logger.Infof("Telemetry: metrics backend '%s', traces exporter '%s'.", cfg.MetricsBackend, cfg.TracesExporter)
	return t, nil
}

// MetricsHandler returns the Prometheus scrape handler, or nil when another backend is in use.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.prometheus == nil {
		return nil
	}
	return t.prometheus.Handler()
}

// Shutdown flushes and stops every exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func serviceName(cfg config.TelemetryConfig) string {
	if cfg.ServiceName == "" {
		return "sequencer"
	}
	return cfg.ServiceName
}

func newMetricExporter(ctx context.Context, cfg config.TelemetryConfig) (sdkmetric.Exporter, error) {
	switch cfg.MetricsExporter {
	case ExporterOTLPGRPC, "":
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", cfg.MetricsExporter)
	}
}

func newSpanExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	if cfg.TracesExporter == ExporterOTLPHTTP {
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{}
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}
