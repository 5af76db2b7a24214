package http

import (
	"net/http"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/mfa"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type MFAHandler interface {
	Status(w http.ResponseWriter, r *http.Request)
	Setup(w http.ResponseWriter, r *http.Request)
	Enable(w http.ResponseWriter, r *http.Request)
	Disable(w http.ResponseWriter, r *http.Request)
	RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request)
}

type mfaHandlerImpl struct {
	mfaService mfa.MFAService
}

func NewMFAHandler(mfaService mfa.MFAService) MFAHandler {
	return &mfaHandlerImpl{mfaService: mfaService}
}

func (h *mfaHandlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.mfaService.Status(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, status)
}

func (h *mfaHandlerImpl) Setup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.mfaService.Setup(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, setup)
}

// Enable verifies the first code and returns the recovery codes once
func (h *mfaHandlerImpl) Enable(w http.ResponseWriter, r *http.Request) {
	var req mfa.CodeRequest
	if !decodeJSON(w, r, &req, "EnableMFA") {
		return
	}

	codes, err := h.mfaService.VerifyAndEnable(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Two-factor authentication enabled", codes)
}

func (h *mfaHandlerImpl) Disable(w http.ResponseWriter, r *http.Request) {
	var req mfa.PasswordRequest
	if !decodeJSON(w, r, &req, "DisableMFA") {
		return
	}

	if err := h.mfaService.Disable(r.Context(), middleware.UserID(r.Context()), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Two-factor authentication disabled", nil)
}

func (h *mfaHandlerImpl) RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	var req mfa.PasswordRequest
	if !decodeJSON(w, r, &req, "RegenerateRecoveryCodes") {
		return
	}

	codes, err := h.mfaService.RegenerateRecoveryCodes(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, codes)
}
