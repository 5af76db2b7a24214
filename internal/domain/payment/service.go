package payment

import (
	"context"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
)

type PaymentService interface {
	InitializePayment(ctx context.Context, workspaceID, userID string, req InitializePaymentRequest) (InitializePaymentResponse, error)
	HandleWebhook(ctx context.Context, req WebhookRequest) (WebhookResult, error)
	RecordOfflinePayment(ctx context.Context, workspaceID, userID, invoiceID string, req invoice.RecordPaymentRequest) (PaymentResponse, error)

	ReconcilePayment(ctx context.Context, paymentID string) (ReconciliationResponse, error)
	ReconcileRecent(ctx context.Context) (ReconcileSummary, error)
	ProcessPendingRecoveries(ctx context.Context) (RecoverySummary, error)

	Get(ctx context.Context, workspaceID, id string) (PaymentResponse, error)
	List(ctx context.Context, filter PaymentFilter) ([]PaymentResponse, int64, error)
	ListByInvoice(ctx context.Context, workspaceID, invoiceID string) ([]PaymentResponse, error)
	ListTransactions(ctx context.Context, workspaceID string, page, limit int) ([]TransactionResponse, int64, error)
	ListAuditLogs(ctx context.Context, workspaceID, paymentID string) ([]AuditLogResponse, error)
}
