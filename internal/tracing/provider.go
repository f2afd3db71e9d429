// Package tracing exports one OpenTelemetry span per purchase attempt and
// propagates W3C trace context into the purchase request.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/seckillprobe/internal/config"
)

const (
	defaultServiceName  = "seckillprobe"
	instrumentationName = "github.com/torosent/seckillprobe"
)

// RunInfo identifies the probe run. It is attached to the exported resource
// so every attempt span of one run can be found together.
type RunInfo struct {
	ID           string
	Target       string
	Method       string
	Total        int
	Concurrency  int
	InitialStock int
}

func (r RunInfo) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrTotal.Int(r.Total),
		AttrConcurrency.Int(r.Concurrency),
		AttrInitialStock.Int(r.InitialStock),
	}
	if r.ID != "" {
		attrs = append(attrs, AttrRunID.String(r.ID), semconv.ServiceInstanceID(r.ID))
	}
	if r.Target != "" {
		attrs = append(attrs, AttrTarget.String(r.Target))
	}
	if r.Method != "" {
		attrs = append(attrs, AttrMethod.String(r.Method))
	}
	return attrs
}

// exporterSettings is the tracing configuration after the OTEL_* fallbacks
// have been applied.
type exporterSettings struct {
	endpoint    string
	protocol    string
	insecure    bool
	serviceName string
	sampleRate  float64
}

func resolveSettings(cfg config.TracingConfig, getenv func(string) string) exporterSettings {
	s := exporterSettings{
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		protocol:    strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		insecure:    cfg.Insecure,
		serviceName: strings.TrimSpace(cfg.ServiceName),
		sampleRate:  cfg.SampleRate,
	}
	if s.endpoint == "" {
		s.endpoint = strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"))
	}
	if s.endpoint == "" {
		s.endpoint = strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if s.protocol == "" {
		// The OTLP env spec spells http as "http/protobuf" or "http/json".
		env := strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL")))
		if strings.HasPrefix(env, "http") {
			s.protocol = "http"
		}
	}
	if s.protocol == "" {
		s.protocol = "grpc"
	}
	if s.serviceName == "" {
		s.serviceName = strings.TrimSpace(getenv("OTEL_SERVICE_NAME"))
	}
	if s.serviceName == "" {
		s.serviceName = defaultServiceName
	}
	if strings.HasPrefix(strings.ToLower(s.endpoint), "http://") {
		s.insecure = true
	}
	return s
}

// Provider holds the tracer attempts are recorded with.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init builds the tracer provider for one run. Without an endpoint (flag,
// config or OTEL_EXPORTER_OTLP_*) it returns a provider whose tracer is a no-op.
func Init(ctx context.Context, cfg config.TracingConfig, run RunInfo) (*Provider, error) {
	s := resolveSettings(cfg, os.Getenv)
	if s.endpoint == "" {
		return &Provider{}, nil
	}
	if s.sampleRate < 0 || s.sampleRate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", s.sampleRate)
	}

	exporter, err := newExporter(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		append(run.attributes(), semconv.ServiceName(s.serviceName))...,
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(s.sampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.Propagate == nil || *cfg.Propagate,
	}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the run's tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether attempts carry a traceparent header.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// newExporter accepts either host:port or a full URL as the endpoint.
func newExporter(ctx context.Context, s exporterSettings) (sdktrace.SpanExporter, error) {
	isURL := strings.Contains(s.endpoint, "://")
	switch s.protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
		if isURL {
			opts = []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(s.endpoint)}
		}
		if s.insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
		if isURL {
			opts = []otlptracehttp.Option{otlptracehttp.WithEndpointURL(s.endpoint)}
		}
		if s.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", s.protocol)
	}
}
