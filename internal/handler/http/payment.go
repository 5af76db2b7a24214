package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxWebhookBody    = 1 << 20
)

type PaymentHandler interface {
	Initialize(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Reconcile(w http.ResponseWriter, r *http.Request)
	AuditLogs(w http.ResponseWriter, r *http.Request)
	Transactions(w http.ResponseWriter, r *http.Request)

	// Public provider callback
	Webhook(w http.ResponseWriter, r *http.Request)
}

type paymentHandlerImpl struct {
	paymentService payment.PaymentService
}

func NewPaymentHandler(paymentService payment.PaymentService) PaymentHandler {
	return &paymentHandlerImpl{paymentService: paymentService}
}

// Initialize starts a gateway checkout; the Idempotency-Key header is required
func (h *paymentHandlerImpl) Initialize(w http.ResponseWriter, r *http.Request) {
	var req payment.InitializePaymentRequest
	if !decodeJSON(w, r, &req, "InitializePayment") {
		return
	}
	req.IdempotencyKey = r.Header.Get(idempotencyHeader)

	workspaceID, userID := scope(r)
	resp, err := h.paymentService.InitializePayment(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Payment initialized", resp)
}

func (h *paymentHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)

	filter := payment.PaymentFilter{
		WorkspaceID: workspaceID,
		InvoiceID:   optionalString(r, "invoice_id"),
		Page:        page,
		Limit:       limit,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := payment.Status(s)
		filter.Status = &status
	}
	if m := r.URL.Query().Get("method"); m != "" {
		method := payment.Method(m)
		filter.Method = &method
	}

	payments, total, err := h.paymentService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, payments, response.NewMeta(page, limit, total))
}

func (h *paymentHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	p, err := h.paymentService.Get(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, p)
}

// Reconcile re-verifies one payment of the workspace with its provider
func (h *paymentHandlerImpl) Reconcile(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	id := chi.URLParam(r, "id")
	if _, err := h.paymentService.Get(r.Context(), workspaceID, id); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.paymentService.ReconcilePayment(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *paymentHandlerImpl) AuditLogs(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	logs, err := h.paymentService.ListAuditLogs(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, logs)
}

func (h *paymentHandlerImpl) Transactions(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	txs, total, err := h.paymentService.ListTransactions(r.Context(), workspaceID, page, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, txs, response.NewMeta(page, limit, total))
}

// Webhook passes the raw body to the provider verification
func (h *paymentHandlerImpl) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Failed to read request body", nil)
		return
	}

	result, err := h.paymentService.HandleWebhook(r.Context(), payment.WebhookRequest{
		Provider: chi.URLParam(r, "provider"),
		Header:   r.Header,
		Body:     body,
		IP:       utils.ClientIP(r),
	})
	if err != nil {
		slog.Warn("Webhook rejected", "provider", chi.URLParam(r, "provider"), "error", err)
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, result.Message, result)
}
