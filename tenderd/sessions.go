package tenderd

import (
	"net/http"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/httpmw"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/tenant"
)

type SwitchOrganizationRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
}

func (api *API) switchOrganization(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SwitchOrganizationRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}

	session, err := api.Resolver.SwitchOrganization(ctx, httpmw.SessionToken(r), req.OrganizationID)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	err = api.Auditor.Export(ctx, audit.Log{
		OrganizationID: req.OrganizationID,
		UserID:         session.UserID,
		Action:         audit.ActionSwitchOrganization,
		ResourceType:   rbac.ResourceOrganization.Type,
		ResourceID:     req.OrganizationID.String(),
	})
	if err != nil {
		api.Logger.Warn(ctx, "export audit log",
			slog.F("action", audit.ActionSwitchOrganization),
			slog.Error(err),
		)
	}
	httpapi.Write(ctx, rw, http.StatusOK, session)
}

func (api *API) logout(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := api.Resolver.Logout(ctx, httpmw.SessionToken(r)); err != nil {
		api.writeError(rw, r, err)
		return
	}
	http.SetCookie(rw, &http.Cookie{
		Name:     tenant.SessionTokenCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httpapi.Write(ctx, rw, http.StatusOK, httpapi.Response{Message: "Logged out."})
}

// subjectOptional returns the resolved subject if the route has one.
func subjectOptional(r *http.Request) (rbac.Subject, bool) {
	return dbauthz.ActorFromContext(r.Context())
}
