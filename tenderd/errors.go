package tenderd

import (
	"fmt"
	"net/http"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/httpmw"
	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
	"github.com/tenderd/tenderd/tenderd/tenant"
	"github.com/tenderd/tenderd/tenderd/transition"
)

// writeError maps an error from the store or the transition service to a
// response. Denials and missing resources share one response so that
// callers cannot learn whether a resource exists.
func (api *API) writeError(rw http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var uerr *rbac.UnauthorizedError
	switch {
	case xerrors.As(err, &uerr):
		if uerr.Reason() == rbac.ReasonConditionFailed && api.canRead(r, uerr.Object()) {
			httpapi.Write(ctx, rw, http.StatusConflict, httpapi.Response{
				Message: conditionFailedMessage(uerr),
			})
			return
		}
		httpapi.Forbidden(rw)
	case database.IsNotFound(err):
		httpapi.Forbidden(rw)
	case xerrors.Is(err, rbac.ErrTemporarilyUnavailable):
		api.Logger.Warn(ctx, "authorization unavailable", slog.Error(err))
		httpapi.Write(ctx, rw, http.StatusServiceUnavailable, httpapi.Response{
			Message: "Authorization is temporarily unavailable. Please try again.",
		})
	case xerrors.Is(err, lifecycle.ErrInvalidTransition):
		httpapi.Write(ctx, rw, http.StatusBadRequest, httpapi.Response{
			Message: "Invalid status transition.",
			Detail:  err.Error(),
		})
	case xerrors.Is(err, transition.ErrAwardSideEffectFailed):
		api.Logger.Error(ctx, "award failed", slog.Error(err))
		httpapi.Write(ctx, rw, http.StatusInternalServerError, httpapi.Response{
			Message: "The award could not be completed. Nothing was changed.",
		})
	case xerrors.Is(err, dbauthz.ErrStatusChanged):
		httpapi.Write(ctx, rw, http.StatusConflict, httpapi.Response{
			Message: "The resource was changed by someone else. Reload it and try again.",
		})
	case xerrors.Is(err, transition.ErrOwnerRole),
		xerrors.Is(err, transition.ErrUnknownRole),
		xerrors.Is(err, transition.ErrNotMember),
		xerrors.Is(err, dbauthz.ErrAwardRequired):
		httpapi.Write(ctx, rw, http.StatusBadRequest, httpapi.Response{
			Message: err.Error(),
		})
	case database.IsUniqueViolation(err):
		httpapi.Write(ctx, rw, http.StatusConflict, httpapi.Response{
			Message: "A resource with that name already exists.",
		})
	case database.IsForeignKeyViolation(err):
		httpapi.Write(ctx, rw, http.StatusBadRequest, httpapi.Response{
			Message: "A referenced resource does not exist.",
		})
	case xerrors.Is(err, tenant.ErrUnauthenticated),
		xerrors.Is(err, tenant.ErrNoActiveOrganization),
		xerrors.Is(err, tenant.ErrOrganizationMismatch):
		httpmw.WriteResolveError(rw, r, err, api.OnboardingURL)
	default:
		api.Logger.Error(ctx, "unhandled api error", slog.Error(err))
		httpapi.InternalServerError(rw)
	}
}

// canRead reports whether the subject may see the object a conditional
// rule refused. Only then is the refusal explained.
func (api *API) canRead(r *http.Request, object rbac.Object) bool {
	subject, ok := subjectOptional(r)
	if !ok {
		return false
	}
	return rbac.Can(r.Context(), api.Authorizer, subject, policy.ActionRead, object)
}

func conditionFailedMessage(uerr *rbac.UnauthorizedError) string {
	obj := uerr.Object()
	status := "its current status"
	if obj.Snapshot != nil {
		status = fmt.Sprintf("status %q", obj.Snapshot.Status)
	}
	return fmt.Sprintf("Your role cannot %s this %s while it has %s.", uerr.Action(), obj.Type, status)
}
