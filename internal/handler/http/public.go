package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

const reportPasswordHeader = "X-Report-Password"

// PublicHandler serves token-addressed documents to clients without an account
type PublicHandler interface {
	GetInvoice(w http.ResponseWriter, r *http.Request)
	InvoicePDF(w http.ResponseWriter, r *http.Request)
	GetEstimate(w http.ResponseWriter, r *http.Request)
	ApproveEstimate(w http.ResponseWriter, r *http.Request)
	DeclineEstimate(w http.ResponseWriter, r *http.Request)
	GetSharedReport(w http.ResponseWriter, r *http.Request)
}

type publicHandlerImpl struct {
	invoiceService  invoice.InvoiceService
	estimateService estimate.EstimateService
	reportService   report.ReportService
}

func NewPublicHandler(invoiceService invoice.InvoiceService, estimateService estimate.EstimateService, reportService report.ReportService) PublicHandler {
	return &publicHandlerImpl{
		invoiceService:  invoiceService,
		estimateService: estimateService,
		reportService:   reportService,
	}
}

func (h *publicHandlerImpl) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoiceService.GetByPublicToken(r.Context(), chi.URLParam(r, "token"), utils.ClientIP(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, inv)
}

func (h *publicHandlerImpl) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	data, fileName, err := h.invoiceService.RenderPublicPDF(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.File(w, "application/pdf", fileName, data)
}

func (h *publicHandlerImpl) GetEstimate(w http.ResponseWriter, r *http.Request) {
	est, err := h.estimateService.GetByPublicToken(r.Context(), chi.URLParam(r, "token"), utils.ClientIP(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, est)
}

func (h *publicHandlerImpl) ApproveEstimate(w http.ResponseWriter, r *http.Request) {
	est, err := h.estimateService.Approve(r.Context(), chi.URLParam(r, "token"), utils.ClientIP(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Estimate approved", est)
}

func (h *publicHandlerImpl) DeclineEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimate.DeclineRequest
	if !decodeJSON(w, r, &req, "DeclineEstimate") {
		return
	}

	est, err := h.estimateService.Decline(r.Context(), chi.URLParam(r, "token"), utils.ClientIP(r), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Estimate declined", est)
}

func (h *publicHandlerImpl) GetSharedReport(w http.ResponseWriter, r *http.Request) {
	password := r.Header.Get(reportPasswordHeader)
	if password == "" {
		password = r.URL.Query().Get("password")
	}

	rep, err := h.reportService.GetSharedReport(r.Context(), chi.URLParam(r, "token"), password, utils.ClientIP(r), r.UserAgent())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, rep)
}
