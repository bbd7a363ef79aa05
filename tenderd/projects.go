package tenderd

import (
	"net/http"

	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/httpmw"
	"github.com/tenderd/tenderd/tenderd/transition"
)

func (api *API) project(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "project")
	if !ok {
		return
	}
	project, err := api.Database.GetProjectByID(ctx, id)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, project)
}

func (api *API) putProjectStatus(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "project")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	project, err := api.Transitions.UpdateProjectStatus(ctx, httpmw.Subject(r), id, req.Status)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, project)
}

func (api *API) postPurchaseOrder(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, ok := httpmw.UUIDParam(rw, r, "project")
	if !ok {
		return
	}
	var req transition.CreatePurchaseOrderParams
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	po, err := api.Transitions.CreatePurchaseOrder(ctx, httpmw.Subject(r), projectID, req)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusCreated, po)
}

func (api *API) purchaseOrder(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "purchaseorder")
	if !ok {
		return
	}
	po, err := api.Database.GetPurchaseOrderByID(ctx, id)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, po)
}

func (api *API) putPurchaseOrderStatus(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httpmw.UUIDParam(rw, r, "purchaseorder")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !httpapi.Read(ctx, rw, r, &req) {
		return
	}
	po, err := api.Transitions.UpdatePurchaseOrderStatus(ctx, httpmw.Subject(r), id, req.Status)
	if err != nil {
		api.writeError(rw, r, err)
		return
	}
	httpapi.Write(ctx, rw, http.StatusOK, po)
}
