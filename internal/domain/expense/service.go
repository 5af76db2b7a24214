package expense

import (
	"context"
	"io"
	"time"
)

type ExpenseService interface {
	Create(ctx context.Context, workspaceID, userID string, req ExpenseRequest) (ExpenseResponse, error)
	Get(ctx context.Context, workspaceID, id string) (ExpenseResponse, error)
	List(ctx context.Context, filter ExpenseFilter) ([]ExpenseResponse, int64, error)
	Update(ctx context.Context, workspaceID, userID, id string, req ExpenseRequest) (ExpenseResponse, error)
	Delete(ctx context.Context, workspaceID, userID, id string) error

	// ==================== Workflow ====================

	Submit(ctx context.Context, workspaceID, userID, id string) (ExpenseResponse, error)
	Approve(ctx context.Context, workspaceID, userID, id string) (ExpenseResponse, error)
	Reject(ctx context.Context, workspaceID, userID, id string, req RejectRequest) (ExpenseResponse, error)
	Reimburse(ctx context.Context, workspaceID, userID, id string, req ReimburseRequest) (ExpenseResponse, error)
	// BillToInvoice adds the expense as a line of a draft invoice
	BillToInvoice(ctx context.Context, workspaceID, userID, id string, req BillRequest) (ExpenseResponse, error)

	// ==================== Attachments ====================

	AddAttachment(ctx context.Context, workspaceID, userID, id string, fileName string, r io.Reader) (AttachmentResponse, error)
	ListAttachments(ctx context.Context, workspaceID, id string) ([]AttachmentResponse, error)
	RemoveAttachment(ctx context.Context, workspaceID, userID, id, attachmentID string) error

	ListAuditLogs(ctx context.Context, workspaceID, id string) ([]AuditLogResponse, error)
	Summary(ctx context.Context, workspaceID string, from, to time.Time) (Summary, error)
	ProfitAndLoss(ctx context.Context, workspaceID string, from, to time.Time) (ProfitAndLoss, error)

	// ==================== Categories ====================

	SeedDefaultCategories(ctx context.Context, workspaceID string) error
	CreateCategory(ctx context.Context, workspaceID string, req CategoryRequest) (CategoryResponse, error)
	ListCategories(ctx context.Context, workspaceID string, activeOnly bool) ([]CategoryResponse, error)
	UpdateCategory(ctx context.Context, workspaceID, id string, req CategoryRequest) (CategoryResponse, error)
	DeleteCategory(ctx context.Context, workspaceID, id string) error

	// ==================== Vendors ====================

	CreateVendor(ctx context.Context, workspaceID string, req VendorRequest) (VendorResponse, error)
	GetVendor(ctx context.Context, workspaceID, id string) (VendorResponse, error)
	ListVendors(ctx context.Context, workspaceID, search string, page, limit int) ([]VendorResponse, int64, error)
	UpdateVendor(ctx context.Context, workspaceID, id string, req VendorRequest) (VendorResponse, error)
	DeleteVendor(ctx context.Context, workspaceID, id string) error
}
