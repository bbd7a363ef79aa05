package rbac

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

// rbacTraceAttributes are the attributes that are added to all spans created by
// the rbac package.
func rbacTraceAttributes(actor Subject, action policy.Action, objectType string, extra ...attribute.KeyValue) trace.SpanStartOption {
	return trace.WithAttributes(
		append(extra,
			attribute.String("subject_id", actor.UserID.String()),
			attribute.String("organization_id", actor.OrganizationID.String()),
			attribute.String("action", string(action)),
			attribute.String("object_type", objectType),
		)...)
}
