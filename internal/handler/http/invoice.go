package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

type InvoiceHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Duplicate(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	Send(w http.ResponseWriter, r *http.Request)
	Transition(w http.ResponseWriter, r *http.Request)
	Void(w http.ResponseWriter, r *http.Request)
	WriteOff(w http.ResponseWriter, r *http.Request)

	// Payments
	RecordPayment(w http.ResponseWriter, r *http.Request)
	ListPayments(w http.ResponseWriter, r *http.Request)

	PDF(w http.ResponseWriter, r *http.Request)
	RegeneratePublicToken(w http.ResponseWriter, r *http.Request)
	Activity(w http.ResponseWriter, r *http.Request)
}

type invoiceHandlerImpl struct {
	invoiceService invoice.InvoiceService
	paymentService payment.PaymentService
}

func NewInvoiceHandler(invoiceService invoice.InvoiceService, paymentService payment.PaymentService) InvoiceHandler {
	return &invoiceHandlerImpl{
		invoiceService: invoiceService,
		paymentService: paymentService,
	}
}

func (h *invoiceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)

	filter := invoice.InvoiceFilter{
		WorkspaceID: workspaceID,
		ClientID:    optionalString(r, "client_id"),
		Search:      r.URL.Query().Get("search"),
		Page:        page,
		Limit:       limit,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := invoice.Status(s)
		if !status.IsValid() {
			response.BadRequest(w, "Unknown invoice status", nil)
			return
		}
		filter.Status = &status
	}
	var ok bool
	if filter.DateFrom, ok = optionalDate(r, "date_from"); !ok {
		response.BadRequest(w, "date_from must be YYYY-MM-DD", nil)
		return
	}
	if filter.DateTo, ok = optionalDate(r, "date_to"); !ok {
		response.BadRequest(w, "date_to must be YYYY-MM-DD", nil)
		return
	}

	invoices, total, err := h.invoiceService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, invoices, response.NewMeta(page, limit, total))
}

func (h *invoiceHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req invoice.CreateInvoiceRequest
	if !decodeJSON(w, r, &req, "CreateInvoice") {
		return
	}

	workspaceID, userID := scope(r)
	created, err := h.invoiceService.Create(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Invoice created successfully", created)
}

func (h *invoiceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	inv, err := h.invoiceService.Get(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, inv)
}

func (h *invoiceHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req invoice.UpdateInvoiceRequest
	if !decodeJSON(w, r, &req, "UpdateInvoice") {
		return
	}

	workspaceID, userID := scope(r)
	updated, err := h.invoiceService.Update(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Invoice updated successfully", updated)
}

func (h *invoiceHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	if err := h.invoiceService.Delete(r.Context(), workspaceID, userID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Invoice deleted successfully", nil)
}

func (h *invoiceHandlerImpl) Duplicate(w http.ResponseWriter, r *http.Request) {
	var req invoice.DuplicateRequest
	if !decodeJSON(w, r, &req, "DuplicateInvoice") {
		return
	}

	workspaceID, userID := scope(r)
	dup, err := h.invoiceService.Duplicate(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Invoice duplicated", dup)
}

func (h *invoiceHandlerImpl) Send(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	sent, err := h.invoiceService.Send(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Invoice sent", sent)
}

func (h *invoiceHandlerImpl) Transition(w http.ResponseWriter, r *http.Request) {
	var req invoice.TransitionRequest
	if !decodeJSON(w, r, &req, "TransitionInvoice") {
		return
	}

	workspaceID, userID := scope(r)
	inv, err := h.invoiceService.Transition(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Invoice status updated", inv)
}

// reasoned runs a lifecycle action that requires a reason
func (h *invoiceHandlerImpl) reasoned(w http.ResponseWriter, r *http.Request, op, message string,
	action func(r *http.Request, workspaceID, userID, id, reason string) (invoice.InvoiceResponse, error)) {
	var req invoice.ReasonRequest
	if !decodeJSON(w, r, &req, op) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	workspaceID, userID := scope(r)
	inv, err := action(r, workspaceID, userID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, message, inv)
}

func (h *invoiceHandlerImpl) Void(w http.ResponseWriter, r *http.Request) {
	h.reasoned(w, r, "VoidInvoice", "Invoice voided", func(r *http.Request, ws, user, id, reason string) (invoice.InvoiceResponse, error) {
		return h.invoiceService.Void(r.Context(), ws, user, id, reason)
	})
}

func (h *invoiceHandlerImpl) WriteOff(w http.ResponseWriter, r *http.Request) {
	h.reasoned(w, r, "WriteOffInvoice", "Invoice written off", func(r *http.Request, ws, user, id, reason string) (invoice.InvoiceResponse, error) {
		return h.invoiceService.WriteOff(r.Context(), ws, user, id, reason)
	})
}

// RecordPayment records an offline payment and emails the receipt
func (h *invoiceHandlerImpl) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req invoice.RecordPaymentRequest
	if !decodeJSON(w, r, &req, "RecordPayment") {
		return
	}

	workspaceID, userID := scope(r)
	p, err := h.paymentService.RecordOfflinePayment(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Payment recorded", p)
}

func (h *invoiceHandlerImpl) ListPayments(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	payments, err := h.paymentService.ListByInvoice(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, payments)
}

func (h *invoiceHandlerImpl) PDF(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	data, name, err := h.invoiceService.RenderPDF(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.File(w, "application/pdf", name, data)
}

func (h *invoiceHandlerImpl) RegeneratePublicToken(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	inv, err := h.invoiceService.RegeneratePublicToken(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Public link regenerated", inv)
}

func (h *invoiceHandlerImpl) Activity(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	activity, err := h.invoiceService.ListActivity(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, activity)
}
