package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	Create(ctx context.Context, workspaceID, userID string, req CreateInvoiceRequest) (InvoiceResponse, error)
	// Generate creates a draft invoice for recurring billing and estimate conversion
	Generate(ctx context.Context, req GenerateRequest) (Invoice, error)
	Get(ctx context.Context, workspaceID, id string) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, workspaceID, id string) (Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	Update(ctx context.Context, workspaceID, userID, id string, req UpdateInvoiceRequest) (InvoiceResponse, error)
	Delete(ctx context.Context, workspaceID, userID, id string) error
	Duplicate(ctx context.Context, workspaceID, userID, id string, req DuplicateRequest) (InvoiceResponse, error)

	// ==================== Lifecycle ====================

	// Send moves draft invoices to sent and emails the client; an empty userID marks a system send
	Send(ctx context.Context, workspaceID, userID, id string) (InvoiceResponse, error)
	Transition(ctx context.Context, workspaceID, userID, id string, req TransitionRequest) (InvoiceResponse, error)
	Void(ctx context.Context, workspaceID, userID, id, reason string) (InvoiceResponse, error)
	WriteOff(ctx context.Context, workspaceID, userID, id, reason string) (InvoiceResponse, error)
	// MarkOverdue flags every open invoice past due on day and returns the flagged invoices
	MarkOverdue(ctx context.Context, day time.Time) ([]Invoice, error)

	// ==================== Payments ====================

	RecordPayment(ctx context.Context, workspaceID, userID, id string, req RecordPaymentRequest) (PaymentApplied, error)
	// ApplyGatewayPayment applies a verified gateway payment inside the caller's transaction.
	// The caller invalidates cached reports once that transaction commits.
	ApplyGatewayPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (Invoice, error)
	// AddLine appends an item to a draft invoice and recalculates it
	AddLine(ctx context.Context, workspaceID, userID, invoiceID string, item ItemInput, action string) (Invoice, error)

	// ==================== Public access ====================

	GetByPublicToken(ctx context.Context, token, ip string) (PublicInvoiceResponse, error)
	RegeneratePublicToken(ctx context.Context, workspaceID, userID, id string) (InvoiceResponse, error)
	RenderPDF(ctx context.Context, workspaceID, id string) ([]byte, string, error)
	RenderPublicPDF(ctx context.Context, token string) ([]byte, string, error)
	ListActivity(ctx context.Context, workspaceID, id string) ([]ActivityResponse, error)
}
