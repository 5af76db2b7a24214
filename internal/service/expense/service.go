package expense

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/fixtures"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
)

const attachmentURLExpiry = 15 * time.Minute

type Repositories struct {
	Expenses    expense.ExpenseRepository
	Categories  expense.CategoryRepository
	Vendors     expense.VendorRepository
	Attachments expense.AttachmentRepository
	Clients     client.ClientRepository
	Workspaces  workspace.WorkspaceRepository
}

type ExpenseServiceImpl struct {
	db database.Transactor
	expense.ExpenseRepository
	categoryRepo   expense.CategoryRepository
	vendorRepo     expense.VendorRepository
	attachmentRepo expense.AttachmentRepository
	clientRepo     client.ClientRepository
	workspaceRepo  workspace.WorkspaceRepository
	invoiceService invoice.InvoiceService
	fileService    file.FileService
	reports        report.Invalidator
	now            func() time.Time
}

func NewExpenseService(
	db database.Transactor,
	repos Repositories,
	invoiceService invoice.InvoiceService,
	fileService file.FileService,
	reports report.Invalidator,
) expense.ExpenseService {
	return &ExpenseServiceImpl{
		db:                db,
		ExpenseRepository: repos.Expenses,
		categoryRepo:      repos.Categories,
		vendorRepo:        repos.Vendors,
		attachmentRepo:    repos.Attachments,
		clientRepo:        repos.Clients,
		workspaceRepo:     repos.Workspaces,
		invoiceService:    invoiceService,
		fileService:       fileService,
		reports:           reports,
		now:               time.Now,
	}
}

func pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func userPtr(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}

func (s *ExpenseServiceImpl) get(ctx context.Context, workspaceID, id string) (expense.Expense, error) {
	e, err := s.ExpenseRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return expense.Expense{}, expense.ErrExpenseNotFound
		}
		return expense.Expense{}, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

func (s *ExpenseServiceImpl) lock(ctx context.Context, workspaceID, id string) (expense.Expense, error) {
	e, err := s.ExpenseRepository.GetByIDForUpdate(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return expense.Expense{}, expense.ErrExpenseNotFound
		}
		return expense.Expense{}, fmt.Errorf("failed to lock expense: %w", err)
	}
	return e, nil
}

func (s *ExpenseServiceImpl) audit(ctx context.Context, expenseID, userID, action string, details map[string]any) error {
	err := s.ExpenseRepository.CreateAuditLog(ctx, expense.AuditLog{
		ExpenseID: expenseID,
		UserID:    userPtr(userID),
		Action:    action,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("failed to write expense audit log: %w", err)
	}
	return nil
}

// refreshVendors recomputes the spend totals of every vendor given
func (s *ExpenseServiceImpl) refreshVendors(ctx context.Context, vendorIDs ...*string) error {
	seen := map[string]bool{}
	for _, id := range vendorIDs {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if err := s.vendorRepo.RefreshTotals(ctx, *id); err != nil {
			return fmt.Errorf("failed to refresh vendor totals: %w", err)
		}
	}
	return nil
}

// checkReferences makes sure the category, vendor and client belong to the workspace.
// A vendor's default category is used when no category was given.
func (s *ExpenseServiceImpl) checkReferences(ctx context.Context, workspaceID string, req *expense.ExpenseRequest) error {
	if req.VendorID != nil {
		v, err := s.vendorRepo.GetByID(ctx, workspaceID, *req.VendorID)
		if err != nil {
			if database.IsNotFound(err) {
				return expense.ErrVendorNotFound
			}
			return fmt.Errorf("failed to get vendor: %w", err)
		}
		if req.CategoryID == nil && v.DefaultCategoryID != nil {
			req.CategoryID = v.DefaultCategoryID
		}
	}
	if req.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, workspaceID, *req.CategoryID); err != nil {
			if database.IsNotFound(err) {
				return expense.ErrCategoryNotFound
			}
			return fmt.Errorf("failed to get category: %w", err)
		}
	}
	if req.ClientID != nil {
		if _, err := s.clientRepo.GetByID(ctx, workspaceID, *req.ClientID); err != nil {
			if database.IsNotFound(err) {
				return client.ErrClientNotFound
			}
			return fmt.Errorf("failed to get client: %w", err)
		}
	}
	return nil
}

// ==================== Expenses ====================

// Create implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Create(ctx context.Context, workspaceID, userID string, req expense.ExpenseRequest) (expense.ExpenseResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.ExpenseResponse{}, err
	}
	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return expense.ExpenseResponse{}, workspace.ErrWorkspaceNotFound
		}
		return expense.ExpenseResponse{}, fmt.Errorf("failed to get workspace: %w", err)
	}
	if err := s.checkReferences(ctx, workspaceID, &req); err != nil {
		return expense.ExpenseResponse{}, err
	}

	e := expense.Expense{WorkspaceID: workspaceID, CreatedBy: userPtr(userID), Status: expense.StatusDraft}
	req.Apply(&e, ws.DefaultCurrency)

	var created expense.Expense
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, err := s.workspaceRepo.NextSequence(txCtx, workspaceID, workspace.SequenceExpense, e.ExpenseDate.Year())
		if err != nil {
			return fmt.Errorf("failed to allocate expense number: %w", err)
		}
		e.ExpenseNumber = fmt.Sprintf("EXP-%d-%04d", e.ExpenseDate.Year(), seq)

		created, err = s.ExpenseRepository.Create(txCtx, e)
		if err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}
		return s.audit(txCtx, created.ID, userID, expense.AuditCreated, map[string]any{
			"expense_number": created.ExpenseNumber,
			"total_amount":   created.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return expense.ExpenseResponse{}, err
	}

	s.reports.InvalidateWorkspace(ctx, workspaceID)
	return created.ToResponse(), nil
}

// Get implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Get(ctx context.Context, workspaceID, id string) (expense.ExpenseResponse, error) {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return expense.ExpenseResponse{}, err
	}
	return e.ToResponse(), nil
}

// List implements expense.ExpenseService.
func (s *ExpenseServiceImpl) List(ctx context.Context, filter expense.ExpenseFilter) ([]expense.ExpenseResponse, int64, error) {
	filter.Page, filter.Limit = pagination(filter.Page, filter.Limit)
	expenses, total, err := s.ExpenseRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	resp := make([]expense.ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		resp = append(resp, expenses[i].ToResponse())
	}
	return resp, total, nil
}

// Update implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Update(ctx context.Context, workspaceID, userID, id string, req expense.ExpenseRequest) (expense.ExpenseResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.ExpenseResponse{}, err
	}
	if err := s.checkReferences(ctx, workspaceID, &req); err != nil {
		return expense.ExpenseResponse{}, err
	}

	var updated expense.Expense
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if !e.IsEditable() {
			return expense.ErrNotEditable
		}

		oldVendor, oldTotal := e.VendorID, e.TotalAmount
		req.Apply(&e, e.Currency)
		if err := s.ExpenseRepository.Update(txCtx, e); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if e.Status.CountsAsSpend() {
			if err := s.refreshVendors(txCtx, oldVendor, e.VendorID); err != nil {
				return err
			}
		}
		updated = e
		return s.audit(txCtx, e.ID, userID, expense.AuditUpdated, map[string]any{
			"old_total": oldTotal.StringFixed(2),
			"new_total": e.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return expense.ExpenseResponse{}, err
	}

	s.reports.InvalidateWorkspace(ctx, workspaceID)
	return updated.ToResponse(), nil
}

// Delete implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Delete(ctx context.Context, workspaceID, userID, id string) error {
	var keys []string
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if !e.IsEditable() {
			return expense.ErrNotEditable
		}

		attachments, err := s.attachmentRepo.ListByExpense(txCtx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		for _, a := range attachments {
			keys = append(keys, a.StorageKey)
		}

		if err := s.ExpenseRepository.Delete(txCtx, workspaceID, e.ID); err != nil {
			if database.IsNotFound(err) {
				return expense.ErrExpenseNotFound
			}
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		if e.Status.CountsAsSpend() {
			return s.refreshVendors(txCtx, e.VendorID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.fileService.DeleteFile(ctx, key); err != nil {
			slog.Warn("Failed to delete expense attachment", "expense_id", id, "key", key, "error", err)
		}
	}
	slog.Info("Expense deleted", "expense_id", id, "workspace_id", workspaceID, "user_id", userID)
	s.reports.InvalidateWorkspace(ctx, workspaceID)
	return nil
}

// ==================== Workflow ====================

// transition applies a workflow step under lock and audits it
func (s *ExpenseServiceImpl) transition(ctx context.Context, workspaceID, userID, id, action string, details map[string]any, apply func(*expense.Expense) error) (expense.ExpenseResponse, error) {
	var updated expense.Expense
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		from := e.Status
		if err := apply(&e); err != nil {
			return err
		}
		if err := s.ExpenseRepository.Update(txCtx, e); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if from.CountsAsSpend() != e.Status.CountsAsSpend() {
			if err := s.refreshVendors(txCtx, e.VendorID); err != nil {
				return err
			}
		}

		if details == nil {
			details = map[string]any{}
		}
		details["from"] = string(from)
		details["to"] = string(e.Status)
		updated = e
		return s.audit(txCtx, e.ID, userID, action, details)
	})
	if err != nil {
		return expense.ExpenseResponse{}, err
	}

	s.reports.InvalidateWorkspace(ctx, workspaceID)
	return updated.ToResponse(), nil
}

// Submit implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Submit(ctx context.Context, workspaceID, userID, id string) (expense.ExpenseResponse, error) {
	return s.transition(ctx, workspaceID, userID, id, expense.AuditSubmitted, nil, func(e *expense.Expense) error {
		return e.Submit(s.now())
	})
}

// Approve implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Approve(ctx context.Context, workspaceID, userID, id string) (expense.ExpenseResponse, error) {
	return s.transition(ctx, workspaceID, userID, id, expense.AuditApproved, nil, func(e *expense.Expense) error {
		return e.Approve(userID, s.now())
	})
}

// Reject implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Reject(ctx context.Context, workspaceID, userID, id string, req expense.RejectRequest) (expense.ExpenseResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.ExpenseResponse{}, err
	}
	return s.transition(ctx, workspaceID, userID, id, expense.AuditRejected, map[string]any{"reason": req.Reason}, func(e *expense.Expense) error {
		return e.Reject(req.Reason)
	})
}

// Reimburse implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Reimburse(ctx context.Context, workspaceID, userID, id string, req expense.ReimburseRequest) (expense.ExpenseResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.ExpenseResponse{}, err
	}
	return s.transition(ctx, workspaceID, userID, id, expense.AuditReimbursed, map[string]any{"reference": req.Reference}, func(e *expense.Expense) error {
		return e.Reimburse(req.Reference, s.now())
	})
}

// BillToInvoice implements expense.ExpenseService.
func (s *ExpenseServiceImpl) BillToInvoice(ctx context.Context, workspaceID, userID, id string, req expense.BillRequest) (expense.ExpenseResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.ExpenseResponse{}, err
	}

	var updated expense.Expense
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if err := e.CanBill(); err != nil {
			return err
		}

		inv, err := s.invoiceService.GetInvoice(txCtx, workspaceID, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != invoice.StatusDraft {
			return expense.ErrInvoiceNotDraft
		}

		_, err = s.invoiceService.AddLine(txCtx, workspaceID, userID, inv.ID, invoice.ItemInput{
			Description: e.InvoiceLineDescription(),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   e.BillableAmount,
			TaxRate:     decimal.Zero,
		}, invoice.ActivityExpenseBilled)
		if err != nil {
			if errors.Is(err, invoice.ErrNotDraft) {
				return expense.ErrInvoiceNotDraft
			}
			return err
		}

		from := e.Status
		e.MarkBilled(inv.ID)
		if err := s.ExpenseRepository.Update(txCtx, e); err != nil {
			return fmt.Errorf("failed to mark expense billed: %w", err)
		}
		if !from.CountsAsSpend() {
			if err := s.refreshVendors(txCtx, e.VendorID); err != nil {
				return err
			}
		}
		updated = e
		return s.audit(txCtx, e.ID, userID, expense.AuditBilled, map[string]any{
			"invoice_id":      inv.ID,
			"invoice_number":  inv.InvoiceNumber,
			"billable_amount": e.BillableAmount.StringFixed(2),
		})
	})
	if err != nil {
		return expense.ExpenseResponse{}, err
	}

	s.reports.InvalidateWorkspace(ctx, workspaceID)
	return updated.ToResponse(), nil
}

// ==================== Attachments ====================

func (s *ExpenseServiceImpl) attachmentResponse(ctx context.Context, a expense.Attachment) expense.AttachmentResponse {
	url, err := s.fileService.GetFileURL(ctx, a.StorageKey, attachmentURLExpiry)
	if err != nil {
		slog.Warn("Failed to sign attachment URL", "attachment_id", a.ID, "error", err)
		url = ""
	}
	return a.ToResponse(url)
}

// AddAttachment implements expense.ExpenseService.
func (s *ExpenseServiceImpl) AddAttachment(ctx context.Context, workspaceID, userID, id string, fileName string, r io.Reader) (expense.AttachmentResponse, error) {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return expense.AttachmentResponse{}, err
	}

	stored, err := s.fileService.UploadReceipt(ctx, workspaceID, e.ID, r, fileName)
	if err != nil {
		return expense.AttachmentResponse{}, err
	}

	var created expense.Attachment
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.attachmentRepo.ListByExpense(txCtx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		created, err = s.attachmentRepo.Create(txCtx, expense.Attachment{
			ExpenseID:   e.ID,
			FileName:    stored.FileName,
			ContentType: stored.ContentType,
			SizeBytes:   stored.Size,
			StorageKey:  stored.Key,
			IsPrimary:   len(existing) == 0,
			UploadedBy:  userPtr(userID),
		})
		if err != nil {
			return fmt.Errorf("failed to create attachment: %w", err)
		}
		return s.audit(txCtx, e.ID, userID, expense.AuditAttachmentAdded, map[string]any{
			"attachment_id": created.ID,
			"file_name":     created.FileName,
			"size_bytes":    created.SizeBytes,
		})
	})
	if err != nil {
		if delErr := s.fileService.DeleteFile(ctx, stored.Key); delErr != nil {
			slog.Warn("Failed to clean up orphaned attachment", "key", stored.Key, "error", delErr)
		}
		return expense.AttachmentResponse{}, err
	}

	return s.attachmentResponse(ctx, created), nil
}

// ListAttachments implements expense.ExpenseService.
func (s *ExpenseServiceImpl) ListAttachments(ctx context.Context, workspaceID, id string) ([]expense.AttachmentResponse, error) {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachmentRepo.ListByExpense(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	resp := make([]expense.AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		resp = append(resp, s.attachmentResponse(ctx, a))
	}
	return resp, nil
}

// RemoveAttachment implements expense.ExpenseService.
func (s *ExpenseServiceImpl) RemoveAttachment(ctx context.Context, workspaceID, userID, id, attachmentID string) error {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return err
	}

	var key string
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		a, err := s.attachmentRepo.GetByID(txCtx, e.ID, attachmentID)
		if err != nil {
			if database.IsNotFound(err) {
				return expense.ErrAttachmentNotFound
			}
			return fmt.Errorf("failed to get attachment: %w", err)
		}
		key = a.StorageKey

		if err := s.attachmentRepo.Delete(txCtx, a.ID); err != nil {
			return fmt.Errorf("failed to delete attachment: %w", err)
		}
		if a.IsPrimary {
			rest, err := s.attachmentRepo.ListByExpense(txCtx, e.ID)
			if err != nil {
				return fmt.Errorf("failed to list attachments: %w", err)
			}
			if len(rest) > 0 {
				if err := s.attachmentRepo.SetPrimary(txCtx, e.ID, rest[0].ID); err != nil {
					return fmt.Errorf("failed to promote attachment: %w", err)
				}
			}
		}
		return s.audit(txCtx, e.ID, userID, expense.AuditAttachmentRemoved, map[string]any{
			"attachment_id": a.ID,
			"file_name":     a.FileName,
		})
	})
	if err != nil {
		return err
	}

	if err := s.fileService.DeleteFile(ctx, key); err != nil {
		slog.Warn("Failed to delete attachment file", "key", key, "error", err)
	}
	return nil
}

// ListAuditLogs implements expense.ExpenseService.
func (s *ExpenseServiceImpl) ListAuditLogs(ctx context.Context, workspaceID, id string) ([]expense.AuditLogResponse, error) {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.ExpenseRepository.ListAuditLogs(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense audit logs: %w", err)
	}
	resp := make([]expense.AuditLogResponse, 0, len(logs))
	for i := range logs {
		resp = append(resp, logs[i].ToResponse())
	}
	return resp, nil
}

// ==================== Summaries ====================

// Summary implements expense.ExpenseService.
func (s *ExpenseServiceImpl) Summary(ctx context.Context, workspaceID string, from, to time.Time) (expense.Summary, error) {
	byStatus, err := s.ExpenseRepository.SummaryByStatus(ctx, workspaceID, from, to)
	if err != nil {
		return expense.Summary{}, err
	}
	byCategory, err := s.ExpenseRepository.SummaryByCategory(ctx, workspaceID, from, to, true)
	if err != nil {
		return expense.Summary{}, err
	}
	billable, unbilled, err := s.ExpenseRepository.BillableTotals(ctx, workspaceID, from, to)
	if err != nil {
		return expense.Summary{}, fmt.Errorf("failed to sum billable expenses: %w", err)
	}

	summary := expense.Summary{
		StartDate:      from.Format(time.DateOnly),
		EndDate:        to.Format(time.DateOnly),
		TotalAmount:    decimal.Zero,
		BillableAmount: billable,
		UnbilledAmount: unbilled,
		ByStatus:       orEmpty(byStatus),
		ByCategory:     orEmpty(byCategory),
	}
	for _, st := range byStatus {
		if !st.Status.CountsAsSpend() {
			continue
		}
		summary.TotalCount += st.Count
		summary.TotalAmount = summary.TotalAmount.Add(st.Total)
	}
	return summary, nil
}

// ProfitAndLoss implements expense.ExpenseService.
func (s *ExpenseServiceImpl) ProfitAndLoss(ctx context.Context, workspaceID string, from, to time.Time) (expense.ProfitAndLoss, error) {
	revenue, err := s.ExpenseRepository.PaidRevenue(ctx, workspaceID, from, to)
	if err != nil {
		return expense.ProfitAndLoss{}, fmt.Errorf("failed to sum revenue: %w", err)
	}
	byCategory, err := s.ExpenseRepository.SummaryByCategory(ctx, workspaceID, from, to, true)
	if err != nil {
		return expense.ProfitAndLoss{}, err
	}

	expenses := decimal.Zero
	for _, c := range byCategory {
		expenses = expenses.Add(c.Total)
	}
	profit := revenue.Sub(expenses)
	return expense.ProfitAndLoss{
		StartDate:    from.Format(time.DateOnly),
		EndDate:      to.Format(time.DateOnly),
		Revenue:      revenue,
		Expenses:     expenses,
		NetProfit:    profit,
		ProfitMargin: expense.Margin(profit, revenue),
		ByCategory:   orEmpty(byCategory),
	}, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ==================== Categories ====================

// SeedDefaultCategories implements expense.ExpenseService.
func (s *ExpenseServiceImpl) SeedDefaultCategories(ctx context.Context, workspaceID string) error {
	if err := s.categoryRepo.CreateMany(ctx, fixtures.GetDefaultCategories(workspaceID)); err != nil {
		return fmt.Errorf("failed to seed expense categories: %w", err)
	}
	return nil
}

// CreateCategory implements expense.ExpenseService.
func (s *ExpenseServiceImpl) CreateCategory(ctx context.Context, workspaceID string, req expense.CategoryRequest) (expense.CategoryResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.CategoryResponse{}, err
	}
	exists, err := s.categoryRepo.NameExists(ctx, workspaceID, req.Name, "")
	if err != nil {
		return expense.CategoryResponse{}, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return expense.CategoryResponse{}, expense.ErrCategoryNameExists
	}

	c := expense.Category{WorkspaceID: workspaceID}
	req.Apply(&c)
	created, err := s.categoryRepo.Create(ctx, c)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return expense.CategoryResponse{}, expense.ErrCategoryNameExists
		}
		return expense.CategoryResponse{}, fmt.Errorf("failed to create category: %w", err)
	}
	return created.ToResponse(), nil
}

// ListCategories implements expense.ExpenseService.
func (s *ExpenseServiceImpl) ListCategories(ctx context.Context, workspaceID string, activeOnly bool) ([]expense.CategoryResponse, error) {
	categories, err := s.categoryRepo.List(ctx, workspaceID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	resp := make([]expense.CategoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, categories[i].ToResponse())
	}
	return resp, nil
}

// UpdateCategory implements expense.ExpenseService.
func (s *ExpenseServiceImpl) UpdateCategory(ctx context.Context, workspaceID, id string, req expense.CategoryRequest) (expense.CategoryResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.CategoryResponse{}, err
	}
	c, err := s.categoryRepo.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return expense.CategoryResponse{}, expense.ErrCategoryNotFound
		}
		return expense.CategoryResponse{}, fmt.Errorf("failed to get category: %w", err)
	}
	exists, err := s.categoryRepo.NameExists(ctx, workspaceID, req.Name, id)
	if err != nil {
		return expense.CategoryResponse{}, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return expense.CategoryResponse{}, expense.ErrCategoryNameExists
	}

	req.Apply(&c)
	if err := s.categoryRepo.Update(ctx, c); err != nil {
		return expense.CategoryResponse{}, fmt.Errorf("failed to update category: %w", err)
	}
	return c.ToResponse(), nil
}

// DeleteCategory implements expense.ExpenseService.
func (s *ExpenseServiceImpl) DeleteCategory(ctx context.Context, workspaceID, id string) error {
	if err := s.categoryRepo.Delete(ctx, workspaceID, id); err != nil {
		if database.IsNotFound(err) {
			return expense.ErrCategoryNotFound
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	s.reports.InvalidateWorkspace(ctx, workspaceID)
	return nil
}

// ==================== Vendors ====================

func (s *ExpenseServiceImpl) checkDefaultCategory(ctx context.Context, workspaceID string, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := s.categoryRepo.GetByID(ctx, workspaceID, *id); err != nil {
		if database.IsNotFound(err) {
			return expense.ErrCategoryNotFound
		}
		return fmt.Errorf("failed to get category: %w", err)
	}
	return nil
}

// CreateVendor implements expense.ExpenseService.
func (s *ExpenseServiceImpl) CreateVendor(ctx context.Context, workspaceID string, req expense.VendorRequest) (expense.VendorResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.VendorResponse{}, err
	}
	if err := s.checkDefaultCategory(ctx, workspaceID, req.DefaultCategoryID); err != nil {
		return expense.VendorResponse{}, err
	}
	exists, err := s.vendorRepo.NameExists(ctx, workspaceID, req.Name, "")
	if err != nil {
		return expense.VendorResponse{}, fmt.Errorf("failed to check vendor name: %w", err)
	}
	if exists {
		return expense.VendorResponse{}, expense.ErrVendorNameExists
	}

	v := expense.Vendor{WorkspaceID: workspaceID, TotalExpenses: decimal.Zero}
	req.Apply(&v)
	created, err := s.vendorRepo.Create(ctx, v)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return expense.VendorResponse{}, expense.ErrVendorNameExists
		}
		return expense.VendorResponse{}, fmt.Errorf("failed to create vendor: %w", err)
	}
	return created.ToResponse(), nil
}

func (s *ExpenseServiceImpl) getVendor(ctx context.Context, workspaceID, id string) (expense.Vendor, error) {
	v, err := s.vendorRepo.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return expense.Vendor{}, expense.ErrVendorNotFound
		}
		return expense.Vendor{}, fmt.Errorf("failed to get vendor: %w", err)
	}
	return v, nil
}

// GetVendor implements expense.ExpenseService.
func (s *ExpenseServiceImpl) GetVendor(ctx context.Context, workspaceID, id string) (expense.VendorResponse, error) {
	v, err := s.getVendor(ctx, workspaceID, id)
	if err != nil {
		return expense.VendorResponse{}, err
	}
	return v.ToResponse(), nil
}

// ListVendors implements expense.ExpenseService.
func (s *ExpenseServiceImpl) ListVendors(ctx context.Context, workspaceID, search string, page, limit int) ([]expense.VendorResponse, int64, error) {
	page, limit = pagination(page, limit)
	vendors, total, err := s.vendorRepo.List(ctx, workspaceID, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vendors: %w", err)
	}
	resp := make([]expense.VendorResponse, 0, len(vendors))
	for i := range vendors {
		resp = append(resp, vendors[i].ToResponse())
	}
	return resp, total, nil
}

// UpdateVendor implements expense.ExpenseService.
func (s *ExpenseServiceImpl) UpdateVendor(ctx context.Context, workspaceID, id string, req expense.VendorRequest) (expense.VendorResponse, error) {
	if err := req.Validate(); err != nil {
		return expense.VendorResponse{}, err
	}
	v, err := s.getVendor(ctx, workspaceID, id)
	if err != nil {
		return expense.VendorResponse{}, err
	}
	if err := s.checkDefaultCategory(ctx, workspaceID, req.DefaultCategoryID); err != nil {
		return expense.VendorResponse{}, err
	}
	exists, err := s.vendorRepo.NameExists(ctx, workspaceID, req.Name, id)
	if err != nil {
		return expense.VendorResponse{}, fmt.Errorf("failed to check vendor name: %w", err)
	}
	if exists {
		return expense.VendorResponse{}, expense.ErrVendorNameExists
	}

	req.Apply(&v)
	if err := s.vendorRepo.Update(ctx, v); err != nil {
		return expense.VendorResponse{}, fmt.Errorf("failed to update vendor: %w", err)
	}
	return v.ToResponse(), nil
}

// DeleteVendor implements expense.ExpenseService.
func (s *ExpenseServiceImpl) DeleteVendor(ctx context.Context, workspaceID, id string) error {
	if err := s.vendorRepo.Delete(ctx, workspaceID, id); err != nil {
		if database.IsNotFound(err) {
			return expense.ErrVendorNotFound
		}
		return fmt.Errorf("failed to delete vendor: %w", err)
	}
	return nil
}
