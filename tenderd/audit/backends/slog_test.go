package backends_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/audit/backends"
)

func TestSlogBackend(t *testing.T) {
	t.Parallel()

	var (
		ctx     = context.Background()
		sink    = &fakeSink{}
		logger  = slog.Make(sink)
		backend = backends.NewSlog(logger)
		tender  = uuid.New()
	)

	err := backend.Export(ctx, audit.Log{
		ID:             uuid.New(),
		Time:           time.Now(),
		OrganizationID: uuid.New(),
		UserID:         uuid.New(),
		Action:         audit.ActionStatusChange,
		ResourceType:   "tender",
		ResourceID:     tender.String(),
		StatusFrom:     "draft",
		StatusTo:       "submitted",
	})
	require.NoError(t, err)
	require.Len(t, sink.entries, 1)
	require.Equal(t, "audit_log", sink.entries[0].Message)

	fields := map[string]any{}
	for _, f := range sink.entries[0].Fields {
		fields[f.Name] = f.Value
	}
	require.Equal(t, "submitted", fields["StatusTo"])
	require.Equal(t, tender.String(), fields["ResourceID"])
	// Empty fields are dropped.
	require.NotContains(t, fields, "Reason")
}

type fakeSink struct {
	entries []slog.SinkEntry
}

func (s *fakeSink) LogEntry(_ context.Context, e slog.SinkEntry) {
	s.entries = append(s.entries, e)
}

func (*fakeSink) Sync() {}
