package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type ClientHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	AddNote(w http.ResponseWriter, r *http.Request)
	ListNotes(w http.ResponseWriter, r *http.Request)
	Statement(w http.ResponseWriter, r *http.Request)
}

type clientHandlerImpl struct {
	clientService client.ClientService
}

func NewClientHandler(clientService client.ClientService) ClientHandler {
	return &clientHandlerImpl{clientService: clientService}
}

func (h *clientHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	clients, total, err := h.clientService.List(r.Context(), client.ClientFilter{
		WorkspaceID: workspaceID,
		Search:      r.URL.Query().Get("search"),
		Tag:         r.URL.Query().Get("tag"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, clients, response.NewMeta(page, limit, total))
}

func (h *clientHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req client.CreateClientRequest
	if !decodeJSON(w, r, &req, "CreateClient") {
		return
	}

	workspaceID, _ := scope(r)
	created, err := h.clientService.Create(r.Context(), workspaceID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Client created successfully", created)
}

func (h *clientHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	c, err := h.clientService.Get(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, c)
}

func (h *clientHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req client.UpdateClientRequest
	if !decodeJSON(w, r, &req, "UpdateClient") {
		return
	}

	workspaceID, _ := scope(r)
	updated, err := h.clientService.Update(r.Context(), workspaceID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Client updated successfully", updated)
}

func (h *clientHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.clientService.Delete(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Client deleted successfully", nil)
}

func (h *clientHandlerImpl) AddNote(w http.ResponseWriter, r *http.Request) {
	var req client.AddNoteRequest
	if !decodeJSON(w, r, &req, "AddClientNote") {
		return
	}

	workspaceID, userID := scope(r)
	note, err := h.clientService.AddNote(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Note added", note)
}

func (h *clientHandlerImpl) ListNotes(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	notes, err := h.clientService.ListNotes(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, notes)
}

func (h *clientHandlerImpl) Statement(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	statement, err := h.clientService.Statement(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, statement)
}
