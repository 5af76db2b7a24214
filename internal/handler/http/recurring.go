package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type RecurringHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Pause(w http.ResponseWriter, r *http.Request)
	Resume(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
	RunNow(w http.ResponseWriter, r *http.Request)
	RetryPlan(w http.ResponseWriter, r *http.Request)
	Executions(w http.ResponseWriter, r *http.Request)
	AuditLogs(w http.ResponseWriter, r *http.Request)
}

type recurringHandlerImpl struct {
	recurringService recurring.RecurringService
}

func NewRecurringHandler(recurringService recurring.RecurringService) RecurringHandler {
	return &recurringHandlerImpl{recurringService: recurringService}
}

func (h *recurringHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)

	filter := recurring.ScheduleFilter{
		WorkspaceID: workspaceID,
		ClientID:    optionalString(r, "client_id"),
		Page:        page,
		Limit:       limit,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := recurring.Status(s)
		filter.Status = &status
	}

	schedules, total, err := h.recurringService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, schedules, response.NewMeta(page, limit, total))
}

func (h *recurringHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req recurring.CreateScheduleRequest
	if !decodeJSON(w, r, &req, "CreateSchedule") {
		return
	}

	workspaceID, userID := scope(r)
	created, err := h.recurringService.Create(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Recurring schedule created", created)
}

func (h *recurringHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	s, err := h.recurringService.Get(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, s)
}

func (h *recurringHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req recurring.UpdateScheduleRequest
	if !decodeJSON(w, r, &req, "UpdateSchedule") {
		return
	}

	workspaceID, userID := scope(r)
	updated, err := h.recurringService.Update(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Recurring schedule updated", updated)
}

func (h *recurringHandlerImpl) Pause(w http.ResponseWriter, r *http.Request) {
	var req recurring.PauseRequest
	if !decodeJSON(w, r, &req, "PauseSchedule") {
		return
	}

	workspaceID, userID := scope(r)
	s, err := h.recurringService.Pause(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Recurring schedule paused", s)
}

func (h *recurringHandlerImpl) Resume(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	s, err := h.recurringService.Resume(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Recurring schedule resumed", s)
}

func (h *recurringHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	var req recurring.CancelRequest
	if !decodeJSON(w, r, &req, "CancelSchedule") {
		return
	}

	workspaceID, userID := scope(r)
	s, err := h.recurringService.Cancel(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Recurring schedule cancelled", s)
}

func (h *recurringHandlerImpl) RunNow(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	execution, err := h.recurringService.RunNow(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Invoice generated", execution)
}

func (h *recurringHandlerImpl) RetryPlan(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	plan, err := h.recurringService.GetRetryPlan(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, plan)
}

func (h *recurringHandlerImpl) Executions(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	executions, total, err := h.recurringService.ListExecutions(r.Context(), workspaceID, chi.URLParam(r, "id"), page, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, executions, response.NewMeta(page, limit, total))
}

func (h *recurringHandlerImpl) AuditLogs(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	logs, total, err := h.recurringService.ListAuditLogs(r.Context(), workspaceID, chi.URLParam(r, "id"), page, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, logs, response.NewMeta(page, limit, total))
}
