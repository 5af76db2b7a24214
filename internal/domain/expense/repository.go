package expense

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseRepository interface {
	Create(ctx context.Context, e Expense) (Expense, error)
	GetByID(ctx context.Context, workspaceID, id string) (Expense, error)
	GetByIDForUpdate(ctx context.Context, workspaceID, id string) (Expense, error)
	List(ctx context.Context, filter ExpenseFilter) ([]Expense, int64, error)
	Update(ctx context.Context, e Expense) error
	Delete(ctx context.Context, workspaceID, id string) error

	// SummaryByStatus and SummaryByCategory aggregate expenses dated within [from, to]
	SummaryByStatus(ctx context.Context, workspaceID string, from, to time.Time) ([]StatusTotal, error)
	SummaryByCategory(ctx context.Context, workspaceID string, from, to time.Time, spendOnly bool) ([]CategoryTotal, error)
	// BillableTotals sums billable_amount of billable expenses, and of those not yet billed
	BillableTotals(ctx context.Context, workspaceID string, from, to time.Time) (billable, unbilled decimal.Decimal, err error)
	// PaidRevenue sums amount_paid of paid and part paid invoices issued within [from, to]
	PaidRevenue(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, error)

	CreateAuditLog(ctx context.Context, a AuditLog) error
	ListAuditLogs(ctx context.Context, expenseID string) ([]AuditLog, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c Category) (Category, error)
	CreateMany(ctx context.Context, categories []Category) error
	GetByID(ctx context.Context, workspaceID, id string) (Category, error)
	NameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error)
	List(ctx context.Context, workspaceID string, activeOnly bool) ([]Category, error)
	Update(ctx context.Context, c Category) error
	Delete(ctx context.Context, workspaceID, id string) error
}

type VendorRepository interface {
	Create(ctx context.Context, v Vendor) (Vendor, error)
	GetByID(ctx context.Context, workspaceID, id string) (Vendor, error)
	NameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error)
	List(ctx context.Context, workspaceID, search string, page, limit int) ([]Vendor, int64, error)
	Update(ctx context.Context, v Vendor) error
	Delete(ctx context.Context, workspaceID, id string) error
	// RefreshTotals recomputes total_expenses and expense_count over approved spend
	RefreshTotals(ctx context.Context, vendorID string) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, a Attachment) (Attachment, error)
	GetByID(ctx context.Context, expenseID, id string) (Attachment, error)
	ListByExpense(ctx context.Context, expenseID string) ([]Attachment, error)
	Delete(ctx context.Context, id string) error
	SetPrimary(ctx context.Context, expenseID, id string) error
}
