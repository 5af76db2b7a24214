package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/shopspring/decimal"
)

// maxAttachmentForm leaves room for the multipart envelope around a 10 MB file
const maxAttachmentForm = expense.MaxAttachmentSize + 1<<20

type ExpenseHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)

	// Workflow
	Submit(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	Reimburse(w http.ResponseWriter, r *http.Request)
	Bill(w http.ResponseWriter, r *http.Request)

	// Attachments
	UploadAttachment(w http.ResponseWriter, r *http.Request)
	ListAttachments(w http.ResponseWriter, r *http.Request)
	RemoveAttachment(w http.ResponseWriter, r *http.Request)

	AuditLogs(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
	ProfitAndLoss(w http.ResponseWriter, r *http.Request)

	// Categories
	ListCategories(w http.ResponseWriter, r *http.Request)
	CreateCategory(w http.ResponseWriter, r *http.Request)
	UpdateCategory(w http.ResponseWriter, r *http.Request)
	DeleteCategory(w http.ResponseWriter, r *http.Request)

	// Vendors
	ListVendors(w http.ResponseWriter, r *http.Request)
	CreateVendor(w http.ResponseWriter, r *http.Request)
	GetVendor(w http.ResponseWriter, r *http.Request)
	UpdateVendor(w http.ResponseWriter, r *http.Request)
	DeleteVendor(w http.ResponseWriter, r *http.Request)
}

type expenseHandlerImpl struct {
	expenseService expense.ExpenseService
}

func NewExpenseHandler(expenseService expense.ExpenseService) ExpenseHandler {
	return &expenseHandlerImpl{expenseService: expenseService}
}

func optionalDecimal(r *http.Request, key string) (*decimal.Decimal, bool) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return nil, false
	}
	return &d, true
}

func (h *expenseHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	q := r.URL.Query()

	filter := expense.ExpenseFilter{
		WorkspaceID: workspaceID,
		CategoryID:  optionalString(r, "category_id"),
		VendorID:    optionalString(r, "vendor_id"),
		ClientID:    optionalString(r, "client_id"),
		IsBillable:  optionalBool(r, "is_billable"),
		IsBilled:    optionalBool(r, "is_billed"),
		Search:      q.Get("search"),
		Page:        page,
		Limit:       limit,
	}
	if s := q.Get("status"); s != "" {
		status := expense.Status(s)
		if !status.IsValid() {
			response.BadRequest(w, "Unknown expense status", nil)
			return
		}
		filter.Status = &status
	}
	if tags := q.Get("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Tags = append(filter.Tags, t)
			}
		}
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
	if filter.MinAmount, ok = optionalDecimal(r, "min_amount"); !ok {
		response.BadRequest(w, "min_amount must be a number", nil)
		return
	}
	if filter.MaxAmount, ok = optionalDecimal(r, "max_amount"); !ok {
		response.BadRequest(w, "max_amount must be a number", nil)
		return
	}

	expenses, total, err := h.expenseService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, expenses, response.NewMeta(page, limit, total))
}

func (h *expenseHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req expense.ExpenseRequest
	if !decodeJSON(w, r, &req, "CreateExpense") {
		return
	}

	workspaceID, userID := scope(r)
	created, err := h.expenseService.Create(r.Context(), workspaceID, userID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Expense created successfully", created)
}

func (h *expenseHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	e, err := h.expenseService.Get(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, e)
}

func (h *expenseHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req expense.ExpenseRequest
	if !decodeJSON(w, r, &req, "UpdateExpense") {
		return
	}

	workspaceID, userID := scope(r)
	updated, err := h.expenseService.Update(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense updated successfully", updated)
}

func (h *expenseHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	if err := h.expenseService.Delete(r.Context(), workspaceID, userID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense deleted successfully", nil)
}

func (h *expenseHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	e, err := h.expenseService.Submit(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense submitted for approval", e)
}

func (h *expenseHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	e, err := h.expenseService.Approve(r.Context(), workspaceID, userID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense approved", e)
}

func (h *expenseHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	var req expense.RejectRequest
	if !decodeJSON(w, r, &req, "RejectExpense") {
		return
	}

	workspaceID, userID := scope(r)
	e, err := h.expenseService.Reject(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense rejected", e)
}

func (h *expenseHandlerImpl) Reimburse(w http.ResponseWriter, r *http.Request) {
	var req expense.ReimburseRequest
	if !decodeJSON(w, r, &req, "ReimburseExpense") {
		return
	}

	workspaceID, userID := scope(r)
	e, err := h.expenseService.Reimburse(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense reimbursed", e)
}

func (h *expenseHandlerImpl) Bill(w http.ResponseWriter, r *http.Request) {
	var req expense.BillRequest
	if !decodeJSON(w, r, &req, "BillExpense") {
		return
	}

	workspaceID, userID := scope(r)
	e, err := h.expenseService.BillToInvoice(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Expense added to invoice", e)
}

func (h *expenseHandlerImpl) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentForm)
	if err := r.ParseMultipartForm(maxAttachmentForm); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Field 'file' is required", nil)
		return
	}
	defer file.Close()

	workspaceID, userID := scope(r)
	attachment, err := h.expenseService.AddAttachment(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Attachment uploaded", attachment)
}

func (h *expenseHandlerImpl) ListAttachments(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	attachments, err := h.expenseService.ListAttachments(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, attachments)
}

func (h *expenseHandlerImpl) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	workspaceID, userID := scope(r)
	err := h.expenseService.RemoveAttachment(r.Context(), workspaceID, userID, chi.URLParam(r, "id"), chi.URLParam(r, "attachmentID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Attachment removed", nil)
}

func (h *expenseHandlerImpl) AuditLogs(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	logs, err := h.expenseService.ListAuditLogs(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, logs)
}

func (h *expenseHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	workspaceID, _ := scope(r)
	summary, err := h.expenseService.Summary(r.Context(), workspaceID, rng.Start, rng.End)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, summary)
}

func (h *expenseHandlerImpl) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	workspaceID, _ := scope(r)
	pnl, err := h.expenseService.ProfitAndLoss(r.Context(), workspaceID, rng.Start, rng.End)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, pnl)
}

func (h *expenseHandlerImpl) ListCategories(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	categories, err := h.expenseService.ListCategories(r.Context(), workspaceID, getBoolQueryParam(r, "active_only", false))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, categories)
}

func (h *expenseHandlerImpl) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req expense.CategoryRequest
	if !decodeJSON(w, r, &req, "CreateCategory") {
		return
	}

	workspaceID, _ := scope(r)
	c, err := h.expenseService.CreateCategory(r.Context(), workspaceID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Category created", c)
}

func (h *expenseHandlerImpl) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req expense.CategoryRequest
	if !decodeJSON(w, r, &req, "UpdateCategory") {
		return
	}

	workspaceID, _ := scope(r)
	c, err := h.expenseService.UpdateCategory(r.Context(), workspaceID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Category updated", c)
}

func (h *expenseHandlerImpl) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.expenseService.DeleteCategory(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Category deleted", nil)
}

func (h *expenseHandlerImpl) ListVendors(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	page, limit := pagination(r)
	vendors, total, err := h.expenseService.ListVendors(r.Context(), workspaceID, r.URL.Query().Get("search"), page, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, vendors, response.NewMeta(page, limit, total))
}

func (h *expenseHandlerImpl) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req expense.VendorRequest
	if !decodeJSON(w, r, &req, "CreateVendor") {
		return
	}

	workspaceID, _ := scope(r)
	v, err := h.expenseService.CreateVendor(r.Context(), workspaceID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Vendor created", v)
}

func (h *expenseHandlerImpl) GetVendor(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	v, err := h.expenseService.GetVendor(r.Context(), workspaceID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, v)
}

func (h *expenseHandlerImpl) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	var req expense.VendorRequest
	if !decodeJSON(w, r, &req, "UpdateVendor") {
		return
	}

	workspaceID, _ := scope(r)
	v, err := h.expenseService.UpdateVendor(r.Context(), workspaceID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Vendor updated", v)
}

func (h *expenseHandlerImpl) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	workspaceID, _ := scope(r)
	if err := h.expenseService.DeleteVendor(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Vendor deleted", nil)
}
