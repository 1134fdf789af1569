package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "basegraph.app/ingest"

// SpanContext pairs a span with the context that carries it. End must be
// called once the unit of work is done.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartSpanFromTraceID continues a trace whose id travelled out of band, for
// example on a queue message. An empty or malformed id starts a new trace.
func StartSpanFromTraceID(ctx context.Context, traceID string, name string, opts ...trace.SpanStartOption) *SpanContext {
	parsed, err := trace.TraceIDFromHex(traceID)
	if traceID == "" || err != nil {
		return StartSpan(ctx, name, opts...)
	}

	// Only the trace id crosses the queue, so the remote parent gets a
	// synthetic span id.
	remote := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    parsed,
		SpanID:     syntheticSpanID(parsed),
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
	return StartSpan(trace.ContextWithRemoteSpanContext(ctx, remote), name, opts...)
}

func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
	}
}

func (sc *SpanContext) Span() trace.Span {
	return sc.span
}

// TraceID is the hex trace id of the span, or "" when tracing is off.
func (sc *SpanContext) TraceID() string {
	return TraceIDFromContext(sc.ctx)
}

// TraceIDFromContext returns the hex trace id active in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func syntheticSpanID(id trace.TraceID) trace.SpanID {
	var span trace.SpanID
	copy(span[:], id[8:])
	if !span.IsValid() {
		span[7] = 1
	}
	return span
}
