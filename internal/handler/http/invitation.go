package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invitation"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type InvitationHandler interface {
	// Public endpoint - view invitation details
	GetInvitationByToken(w http.ResponseWriter, r *http.Request)

	// Invitee
	ListMyInvitations(w http.ResponseWriter, r *http.Request)
	AcceptInvitation(w http.ResponseWriter, r *http.Request)

	// Workspace administration
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Revoke(w http.ResponseWriter, r *http.Request)
	Resend(w http.ResponseWriter, r *http.Request)
}

type invitationHandlerImpl struct {
	invitationService invitation.InvitationService
}

func NewInvitationHandler(invitationService invitation.InvitationService) InvitationHandler {
	return &invitationHandlerImpl{
		invitationService: invitationService,
	}
}

// GetInvitationByToken implements InvitationHandler - public endpoint
func (h *invitationHandlerImpl) GetInvitationByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		response.BadRequest(w, "Token is required", nil)
		return
	}

	result, err := h.invitationService.GetByToken(r.Context(), token)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ListMyInvitations implements InvitationHandler - lists pending invitations for authenticated user
func (h *invitationHandlerImpl) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	email := middleware.Email(r.Context())
	if email == "" {
		response.Unauthorized(w, "Email not found in token")
		return
	}

	results, err := h.invitationService.ListMyInvitations(r.Context(), email)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// AcceptInvitation implements InvitationHandler - accept an invitation
func (h *invitationHandlerImpl) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	email := middleware.Email(r.Context())
	if email == "" {
		response.Unauthorized(w, "Email not found in token")
		return
	}

	result, err := h.invitationService.Accept(r.Context(), chi.URLParam(r, "token"), userID, email)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Invitation accepted successfully", result)
}

// Create implements InvitationHandler.
func (h *invitationHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req invitation.CreateRequest
	if !decodeJSON(w, r, &req, "CreateInvitation") {
		return
	}

	workspaceID, userID := scope(r)
	result, err := h.invitationService.Create(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Invitation sent", result)
}

// List implements InvitationHandler.
func (h *invitationHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	var status *invitation.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := invitation.Status(s)
		status = &st
	}

	workspaceID, _ := scope(r)
	results, err := h.invitationService.List(r.Context(), workspaceID, status)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Revoke implements InvitationHandler.
func (h *invitationHandlerImpl) Revoke(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.invitationService.Revoke(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Invitation revoked", nil)
}

// Resend implements InvitationHandler.
func (h *invitationHandlerImpl) Resend(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	result, err := h.invitationService.Resend(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Invitation resent", result)
}
