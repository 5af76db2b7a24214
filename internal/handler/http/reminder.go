package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type ReminderHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	SeedDefaults(w http.ResponseWriter, r *http.Request)
}

type reminderHandlerImpl struct {
	reminderService reminder.ReminderService
}

func NewReminderHandler(reminderService reminder.ReminderService) ReminderHandler {
	return &reminderHandlerImpl{reminderService: reminderService}
}

func (h *reminderHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	rules, err := h.reminderService.List(r.Context(), workspaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, rules)
}

func (h *reminderHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req reminder.RuleRequest
	if !decodeJSON(w, r, &req, "CreateReminderRule") {
		return
	}

	workspaceID, _ := scope(r)
	rule, err := h.reminderService.Create(r.Context(), workspaceID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Reminder rule created", rule)
}

func (h *reminderHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req reminder.RuleRequest
	if !decodeJSON(w, r, &req, "UpdateReminderRule") {
		return
	}

	workspaceID, _ := scope(r)
	rule, err := h.reminderService.Update(r.Context(), workspaceID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Reminder rule updated", rule)
}

func (h *reminderHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.reminderService.Delete(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Reminder rule deleted", nil)
}

func (h *reminderHandlerImpl) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.reminderService.SeedDefaultRules(r.Context(), workspaceID); err != nil {
		response.HandleError(w, err)
		return
	}

	rules, err := h.reminderService.List(r.Context(), workspaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Default reminder rules created", rules)
}
