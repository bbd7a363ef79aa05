package tenderd

import (
	"net/http"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/httpmw"
	"github.com/tenderd/tenderd/tenderd/transition"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AwardTenderRequest struct {
	Status string `json:"status" validate:"required,oneof=won awarded"`
}

type AwardTenderResponse struct {
	Tender  database.Tender  `json:"tender"`
	Project database.Project `json:"project"`
}

func (api *API) postTender(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req transition.CreateTenderParams
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	// The organization always comes from the resolved subject.
	tender, err := api.Transitions.CreateTender(ctx, httpmw.Subject(r), req)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusCreated, tender)
}

func (api *API) tender(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "tender")
	if !ok {
		return
	}
	tender, err := api.Database.GetTenderByID(ctx, id)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, tender)
}

func (api *API) deleteTender(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "tender")
	if !ok {
		return
	}
	if err := api.Transitions.DeleteTender(ctx, httpmw.Subject(r), id); err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, httpapi.Response{Message: "Tender deleted."})
}

func (api *API) putTenderStatus(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "tender")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	tender, err := api.Transitions.UpdateTenderStatus(ctx, httpmw.Subject(r), id, req.Status)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, tender)
}

func (api *API) postTenderAward(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "tender")
	if !ok {
		return
	}
	var req AwardTenderRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	tender, project, err := api.Transitions.AwardTender(ctx, httpmw.Subject(r), id, req.Status)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, AwardTenderResponse{Tender: tender, Project: project})
}
