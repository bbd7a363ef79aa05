package tenderd

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/httpmw"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/transition"
)

// myOrganizations lists the organizations the caller is a member of. It is
// not organization-scoped.
func (api *API) myOrganizations(rw http.ResponseWriter, r *http.Request) {
	session := httpmw.Session(r)
	ctx := dbauthz.As(r.Context(), rbac.Subject{UserID: session.UserID})

	orgs, err := api.Database.GetOrganizationsByUserID(ctx, session.UserID)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, orgs)
}

func (api *API) postOrganization(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := httpmw.Session(r)
	var req transition.CreateOrganizationParams
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}

	org, err := api.Transitions.CreateOrganization(ctx, session.UserID, req)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusCreated, org)
}

func (api *API) organization(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := api.Database.GetOrganizationByID(ctx, httpmw.Subject(r).OrganizationID)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, org)
}

func (api *API) deleteOrganization(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := api.Transitions.DeleteOrganization(ctx, httpmw.Subject(r)); err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, httpapi.Response{Message: "Organization deleted."})
}

type TransferOwnershipRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

func (api *API) transferOwnership(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req TransferOwnershipRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	if err := api.Transitions.TransferOwnership(ctx, httpmw.Subject(r), req.UserID); err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, httpapi.Response{Message: "Ownership transferred."})
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (api *API) putMemberRole(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpmw.UUIDParam(rw, r, "user")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}

	member, err := api.Transitions.UpdateMemberRole(ctx, httpmw.Subject(r), userID, req.Role)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, member)
}
