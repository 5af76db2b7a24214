package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

// WebhookHandler manages outbound webhook endpoints
type WebhookHandler interface {
	ListEndpoints(w http.ResponseWriter, r *http.Request)
	CreateEndpoint(w http.ResponseWriter, r *http.Request)
	UpdateEndpoint(w http.ResponseWriter, r *http.Request)
	DeleteEndpoint(w http.ResponseWriter, r *http.Request)
	ListDeliveries(w http.ResponseWriter, r *http.Request)
	Redeliver(w http.ResponseWriter, r *http.Request)
}

type webhookHandlerImpl struct {
	webhookService webhook.WebhookService
}

func NewWebhookHandler(webhookService webhook.WebhookService) WebhookHandler {
	return &webhookHandlerImpl{webhookService: webhookService}
}

func (h *webhookHandlerImpl) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	endpoints, err := h.webhookService.ListEndpoints(r.Context(), workspaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, endpoints)
}

func (h *webhookHandlerImpl) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req webhook.EndpointRequest
	if !decodeJSON(w, r, &req, "CreateWebhookEndpoint") {
		return
	}

	workspaceID, _ := scope(r)
	endpoint, err := h.webhookService.CreateEndpoint(r.Context(), workspaceID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Webhook endpoint created. Store the secret now, it will not be shown again", endpoint)
}

func (h *webhookHandlerImpl) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req webhook.EndpointRequest
	if !decodeJSON(w, r, &req, "UpdateWebhookEndpoint") {
		return
	}

	workspaceID, _ := scope(r)
	endpoint, err := h.webhookService.UpdateEndpoint(r.Context(), workspaceID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Webhook endpoint updated", endpoint)
}

func (h *webhookHandlerImpl) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.webhookService.DeleteEndpoint(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Webhook endpoint deleted", nil)
}

func (h *webhookHandlerImpl) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	deliveries, total, err := h.webhookService.ListDeliveries(r.Context(), workspaceID, chi.URLParam(r, "id"), page, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, deliveries, response.NewMeta(page, limit, total))
}

func (h *webhookHandlerImpl) Redeliver(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	delivery, err := h.webhookService.Redeliver(r.Context(), workspaceID, chi.URLParam(r, "deliveryID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Delivery resent", delivery)
}
