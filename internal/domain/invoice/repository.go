package invoice

import (
	"context"
	"time"
)

type InvoiceRepository interface {
	// Create inserts the invoice and its items
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	GetByID(ctx context.Context, workspaceID, id string) (Invoice, error)
	// GetByIDForUpdate locks the invoice row for the current transaction
	GetByIDForUpdate(ctx context.Context, id string) (Invoice, error)
	GetByPublicToken(ctx context.Context, token string) (Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	// Update writes every mutable header column
	Update(ctx context.Context, inv Invoice) error
	ReplaceItems(ctx context.Context, invoiceID string, items []Item) error
	Delete(ctx context.Context, workspaceID, id string) error

	// ListOverdueCandidates returns sent, viewed and part_paid invoices due before day with money owed
	ListOverdueCandidates(ctx context.Context, day time.Time) ([]Invoice, error)
	// ListOpenDueOn returns open invoices of a workspace whose due date is day
	ListOpenDueOn(ctx context.Context, workspaceID string, day time.Time) ([]Invoice, error)
	ListByClient(ctx context.Context, workspaceID, clientID string) ([]Invoice, error)
	CountActiveByClient(ctx context.Context, clientID string) (int, error)

	// ==================== Activity ====================

	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, invoiceID string) ([]Activity, error)
}
