package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on request spans.
const (
	AttrKind   = attribute.Key("shortfire.request.kind")
	AttrTarget = attribute.Key("shortfire.target")
	AttrCache  = attribute.Key("shortfire.cache")
	AttrStatus = attribute.Key("http.response.status_code")
	AttrMethod = attribute.Key("http.request.method")
)

// StartRequestSpan starts a client span named after the request kind, for
// example "shortfire redirect".
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, kind, method, target string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "shortfire "+kind, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(AttrKind.String(kind), AttrMethod.String(method))
	if target != "" {
		span.SetAttributes(AttrTarget.String(target))
	}
	return ctx, span
}

// EndSpan records the response status (when non-zero) and err, then ends
// the span.
func EndSpan(span trace.Span, status int, err error, attrs ...attribute.KeyValue) {
	if status > 0 {
		span.SetAttributes(AttrStatus.Int(status))
	}
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

// InjectHTTPHeaders writes the W3C trace context of ctx into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
