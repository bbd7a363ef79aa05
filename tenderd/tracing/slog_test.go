package tracing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/tracing"
)

func TestSlogSink(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	logger := slog.Make(tracing.SlogSink{}).Leveled(slog.LevelDebug)

	// No span in the context, nothing to record on.
	logger.Info(context.Background(), "dropped")

	ctx, span := provider.Tracer("test").Start(context.Background(), "award")
	orgID := uuid.New()
	logger.Named("transition").Warn(ctx, "partial award",
		slog.F("organization_id", orgID),
		slog.F("attempt", 2),
		slog.F("took", 1500*time.Millisecond),
		slog.Error(xerrors.New("insert project")),
	)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	require.Equal(t, "partial award", events[0].Name)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range events[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	require.Equal(t, "transition", attrs["log.logger"].AsString())
	require.Equal(t, orgID.String(), attrs["organization_id"].AsString())
	require.EqualValues(t, 2, attrs["attempt"].AsInt64())
	require.EqualValues(t, 1500, attrs["took"].AsInt64())
	require.Contains(t, attrs["error"].AsString(), "insert project")
}
