package tracing

import (
	"context"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const TracerName = "tenderd"

// StartSpan starts a span named after the calling function using the tracer
// provider of the span already present in ctx.
func StartSpan(ctx context.Context, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return StartSpanWithName(ctx, FuncNameSkip(1), opts...)
}

func StartSpanWithName(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return trace.SpanFromContext(ctx).TracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

func FuncNameSkip(skip int) string {
	fnpc, _, _, ok := runtime.Caller(1 + skip)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(fnpc)
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i > 0 {
		name = name[i+1:]
	}
	return name
}
