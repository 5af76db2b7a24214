package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

const maxLogoForm = 4 << 20

type WorkspaceHandler interface {
	ListMine(w http.ResponseWriter, r *http.Request)
	GetCurrent(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	UploadLogo(w http.ResponseWriter, r *http.Request)

	ListMembers(w http.ResponseWriter, r *http.Request)
	UpdateMemberRole(w http.ResponseWriter, r *http.Request)
	RemoveMember(w http.ResponseWriter, r *http.Request)
	Leave(w http.ResponseWriter, r *http.Request)
}

type WorkspaceHandlerImpl struct {
	workspaceService workspace.WorkspaceService
}

func NewWorkspaceHandler(workspaceService workspace.WorkspaceService) WorkspaceHandler {
	return &WorkspaceHandlerImpl{workspaceService: workspaceService}
}

// ListMine implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) ListMine(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.workspaceService.ListMine(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, workspaces)
}

// GetCurrent implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) GetCurrent(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	ws, err := h.workspaceService.Get(r.Context(), workspaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, ws)
}

// Update implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req workspace.UpdateWorkspaceRequest
	if !decodeJSON(w, r, &req, "UpdateWorkspace") {
		return
	}

	workspaceID, _ := scope(r)
	ws, err := h.workspaceService.Update(r.Context(), workspaceID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Workspace updated successfully", ws)
}

// UploadLogo implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) UploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoForm)
	if err := r.ParseMultipartForm(maxLogoForm); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		response.BadRequest(w, "Field 'logo' is required", nil)
		return
	}
	defer file.Close()

	workspaceID, _ := scope(r)
	ws, err := h.workspaceService.UploadLogo(r.Context(), workspaceID, workspace.LogoUpload{
		Reader:      file,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Logo uploaded successfully", ws)
}

// ListMembers implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) ListMembers(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	members, err := h.workspaceService.ListMembers(r.Context(), workspaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, members)
}

// UpdateMemberRole implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req workspace.UpdateMemberRoleRequest
	if !decodeJSON(w, r, &req, "UpdateMemberRole") {
		return
	}

	workspaceID, _ := scope(r)
	if err := h.workspaceService.UpdateMemberRole(r.Context(), workspaceID, chi.URLParam(r, "userID"), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Member role updated", nil)
}

// RemoveMember implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) RemoveMember(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	if err := h.workspaceService.RemoveMember(r.Context(), workspaceID, userID, chi.URLParam(r, "userID")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Member removed", nil)
}

// Leave implements WorkspaceHandler.
func (h *WorkspaceHandlerImpl) Leave(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	if err := h.workspaceService.Leave(r.Context(), workspaceID, userID); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "You left the workspace", nil)
}
