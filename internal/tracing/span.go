package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/seckillprobe/internal/outcome"
)

const (
	AttrAttemptID = attribute.Key("seckill.attempt_id")
	AttrOutcome   = attribute.Key("seckill.outcome")
	AttrCategory  = attribute.Key("seckill.category")

	AttrRunID        = attribute.Key("seckill.run_id")
	AttrTarget       = attribute.Key("seckill.target")
	AttrMethod       = attribute.Key("seckill.method")
	AttrTotal        = attribute.Key("seckill.total")
	AttrConcurrency  = attribute.Key("seckill.concurrency")
	AttrInitialStock = attribute.Key("seckill.initial_stock")
)

// StartAttemptSpan starts a client span for one purchase attempt.
func StartAttemptSpan(ctx context.Context, tracer trace.Tracer, method, target string, id int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "seckill "+method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		AttrAttemptID.Int(id),
		attribute.String("http.request.method", method),
		attribute.String("url.full", target),
	)
	return ctx, span
}

// EndAttemptSpan annotates the span with the classified outcome and ends it.
// Transport failures, HTTP errors and unrecognised bodies mark the span as failed.
func EndAttemptSpan(span trace.Span, o outcome.Outcome, err error) {
	attrs := []attribute.KeyValue{
		AttrOutcome.String(o.Label()),
		AttrCategory.String(o.Category.Key()),
	}
	if o.StatusCode != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", o.StatusCode))
	}
	if err == nil && (o.Category == outcome.HTTPError || o.Category == outcome.UnknownResponse) {
		span.SetAttributes(attrs...)
		span.SetStatus(codes.Error, o.Label())
		span.End()
		return
	}
	EndSpan(span, err, attrs...)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
