package payment

import (
	"context"
	"time"
)

type PaymentRepository interface {
	Create(ctx context.Context, p Payment) (Payment, error)
	GetByID(ctx context.Context, workspaceID, id string) (Payment, error)
	// GetByReferenceForUpdate locks the payment row for the rest of the transaction
	GetByReferenceForUpdate(ctx context.Context, reference string) (Payment, error)
	GetByIDForUpdate(ctx context.Context, id string) (Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
	ListForReconciliation(ctx context.Context, since time.Time, limit int) ([]Payment, error)
	Update(ctx context.Context, p Payment) error

	CreateTransaction(ctx context.Context, t Transaction) error
	ListTransactions(ctx context.Context, workspaceID string, page, limit int) ([]Transaction, int64, error)

	CreateAuditLog(ctx context.Context, a AuditLog) error
	ListAuditLogs(ctx context.Context, paymentID string) ([]AuditLog, error)

	// WebhookEventExists reports whether (provider, eventID) was already processed
	WebhookEventExists(ctx context.Context, provider, eventID string) (bool, error)
	// CreateWebhookEvent returns false when the event row already exists
	CreateWebhookEvent(ctx context.Context, e WebhookEvent) (bool, error)

	CreateReconciliation(ctx context.Context, r Reconciliation) (Reconciliation, error)
	UpdateReconciliation(ctx context.Context, r Reconciliation) error
	GetReconciliation(ctx context.Context, id string) (Reconciliation, error)

	CreateRecovery(ctx context.Context, r Recovery) error
	UpdateRecovery(ctx context.Context, r Recovery) error
	ListDueRecoveries(ctx context.Context, now time.Time, limit int) ([]Recovery, error)
}

// IdempotencyStore caches initialization responses and webhook event ids
type IdempotencyStore interface {
	// Claim sets key once and reports whether this call set it
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimiter counts hits per key in a fixed window
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
