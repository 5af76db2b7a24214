package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type EstimateHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Send(w http.ResponseWriter, r *http.Request)
	Convert(w http.ResponseWriter, r *http.Request)
	PDF(w http.ResponseWriter, r *http.Request)
}

type estimateHandlerImpl struct {
	estimateService estimate.EstimateService
}

func NewEstimateHandler(estimateService estimate.EstimateService) EstimateHandler {
	return &estimateHandlerImpl{estimateService: estimateService}
}

func (h *estimateHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)

	filter := estimate.EstimateFilter{
		WorkspaceID: workspaceID,
		ClientID:    optionalString(r, "client_id"),
		Search:      r.URL.Query().Get("search"),
		Page:        page,
		Limit:       limit,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := estimate.Status(s)
		filter.Status = &status
	}

	estimates, total, err := h.estimateService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, estimates, response.NewMeta(page, limit, total))
}

func (h *estimateHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req estimate.EstimateRequest
	if !decodeJSON(w, r, &req, "CreateEstimate") {
		return
	}

	workspaceID, userID := scope(r)
	created, err := h.estimateService.Create(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Estimate created successfully", created)
}

func (h *estimateHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	e, err := h.estimateService.Get(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, e)
}

func (h *estimateHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req estimate.EstimateRequest
	if !decodeJSON(w, r, &req, "UpdateEstimate") {
		return
	}

	workspaceID, userID := scope(r)
	updated, err := h.estimateService.Update(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Estimate updated successfully", updated)
}

func (h *estimateHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.estimateService.Delete(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Estimate deleted successfully", nil)
}

func (h *estimateHandlerImpl) Send(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	sent, err := h.estimateService.Send(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Estimate sent", sent)
}

func (h *estimateHandlerImpl) Convert(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	conversion, err := h.estimateService.ConvertToInvoice(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Estimate converted to invoice", conversion)
}

func (h *estimateHandlerImpl) PDF(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	data, name, err := h.estimateService.RenderPDF(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.File(w, "application/pdf", name, data)
}
