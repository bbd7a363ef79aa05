package backends

import (
	"context"

	"github.com/fatih/structs"
	"github.com/google/uuid"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
)

type SlogExporter struct {
	log slog.Logger
}

func NewSlogExporter(logger slog.Logger) *SlogExporter {
	return &SlogExporter{log: logger}
}

func (e *SlogExporter) ExportStruct(ctx context.Context, data any, message string, extraFields ...slog.Field) error {
	// structs.Fields keeps the value types, which slog renders better than
	// the nested maps structs.Map would produce.
	sfs := structs.Fields(data)
	fields := make([]slog.Field, 0, len(sfs)+len(extraFields))
	for _, sf := range sfs {
		if sf.IsZero() {
			continue
		}
		fields = append(fields, fieldToSlog(sf))
	}
	fields = append(fields, extraFields...)

	e.log.Info(ctx, message, fields...)
	return nil
}

func fieldToSlog(field *structs.Field) slog.Field {
	val := field.Value()
	if id, ok := val.(uuid.UUID); ok {
		val = id.String()
	}
	return slog.F(field.Name(), val)
}

type auditSlogBackend struct {
	exporter *SlogExporter
}

func NewSlog(logger slog.Logger) audit.Backend {
	return &auditSlogBackend{
		exporter: NewSlogExporter(logger),
	}
}

func (b *auditSlogBackend) Export(ctx context.Context, alog audit.Log) error {
	return b.exporter.ExportStruct(ctx, alog, "audit_log")
}
