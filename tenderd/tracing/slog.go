package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cdr.dev/slog/v3"
)

// SlogSink records log entries as events on the span in the entry's
// context. Entries without a recording span are dropped.
type SlogSink struct{}

var _ slog.Sink = SlogSink{}

func (SlogSink) LogEntry(ctx context.Context, e slog.SinkEntry) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(e.Fields)+3)
	attrs = append(attrs,
		attribute.String("log.logger", strings.Join(e.LoggerNames, ".")),
		attribute.String("log.level", e.Level.String()),
		attribute.String("log.time", e.Time.Format(time.RFC3339Nano)),
	)
	for _, f := range e.Fields {
		if kv, ok := fieldAttribute(f); ok {
			attrs = append(attrs, kv)
		}
	}
	span.AddEvent(e.Message, trace.WithAttributes(attrs...))
}

func (SlogSink) Sync() {}

func fieldAttribute(f slog.Field) (attribute.KeyValue, bool) {
	key := attribute.Key(f.Name)
	switch v := f.Value.(type) {
	case string:
		return key.String(v), true
	case bool:
		return key.Bool(v), true
	case int:
		return key.Int(v), true
	case int64:
		return key.Int64(v), true
	case float64:
		return key.Float64(v), true
	case []string:
		return key.StringSlice(v), true
	case uuid.UUID:
		return key.String(v.String()), true
	case time.Duration:
		return key.Int64(v.Milliseconds()), true
	case error:
		return key.String(v.Error()), true
	case fmt.Stringer:
		return key.String(v.String()), true
	}
	return attribute.KeyValue{}, false
}
