package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

const defaultEndpoint = "http://localhost:4318/v1/traces"

// Config selects where spans are exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string // full URL or host:port
	SampleRatio    float64
}

type endpoint struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts a full URL or the host:port form.
func parseEndpoint(raw string) (endpoint, error) {
	if raw == "" {
		raw = defaultEndpoint
	}
	ep := endpoint{host: "localhost:4318", path: "/v1/traces", insecure: true}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		ep.host = raw
		return ep, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("parse OTLP endpoint %q: %w", raw, err)
	}
	if u.Host != "" {
		ep.host = u.Host
	}
	if u.Path != "" {
		ep.path = u.Path
	}
	ep.insecure = u.Scheme == "http"
	return ep, nil
}

// InitTracer installs a global tracer provider exporting over OTLP/HTTP.
// The returned provider must be shut down to flush pending spans.
func InitTracer(ctx context.Context, cfg Config, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ep, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(ep.host),
		otlptracehttp.WithURLPath(ep.path),
	}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	version := cfg.ServiceVersion
	if version == "" {
		version = "1.0.0"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("endpoint", ep.host+ep.path),
		zap.Float64("sample_ratio", ratio),
	)
	return tp, nil
}
