package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

const paymentSelect = `
	SELECT p.id, p.workspace_id, p.invoice_id, p.initiated_by, p.amount, p.tip_amount, p.currency, p.status,
		   p.method, p.reference, p.provider_reference, p.checkout_url, p.fee_amount, p.net_amount, p.notes,
		   p.metadata, p.paid_at, p.created_at, p.updated_at,
		   i.invoice_number
	FROM payments p
	JOIN invoices i ON i.id = p.invoice_id
`

type paymentRepositoryImpl struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) payment.PaymentRepository {
	return &paymentRepositoryImpl{db: db}
}

func scanPayment(row interface{ Scan(dest ...any) error }) (payment.Payment, error) {
	var p payment.Payment
	var metadata []byte
	err := row.Scan(
		&p.ID, &p.WorkspaceID, &p.InvoiceID, &p.InitiatedBy, &p.Amount, &p.TipAmount, &p.Currency, &p.Status,
		&p.Method, &p.Reference, &p.ProviderReference, &p.CheckoutURL, &p.FeeAmount, &p.NetAmount, &p.Notes,
		&metadata, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
		&p.InvoiceNumber,
	)
	if err != nil {
		return payment.Payment{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return payment.Payment{}, fmt.Errorf("failed to decode payment metadata: %w", err)
		}
	}
	return p, nil
}

func (r *paymentRepositoryImpl) list(ctx context.Context, query string, args ...any) ([]payment.Payment, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Create implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) Create(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	q := GetQuerier(ctx, r.db)

	metadata, err := json.Marshal(orEmptyMap(p.Metadata))
	if err != nil {
		return payment.Payment{}, err
	}

	p.ID = newID(p.ID)
	query := `
		INSERT INTO payments (
			id, workspace_id, invoice_id, initiated_by, amount, tip_amount, currency, status, method,
			reference, provider_reference, checkout_url, fee_amount, net_amount, notes, metadata, paid_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = q.Exec(ctx, query,
		p.ID, p.WorkspaceID, p.InvoiceID, p.InitiatedBy, p.Amount, p.TipAmount, p.Currency, p.Status, p.Method,
		p.Reference, p.ProviderReference, p.CheckoutURL, p.FeeAmount, p.NetAmount, p.Notes, metadata, p.PaidAt,
	)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("failed to insert payment: %w", err)
	}
	return scanPayment(q.QueryRow(ctx, paymentSelect+` WHERE p.id = $1`, p.ID))
}

// GetByID implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (payment.Payment, error) {
	q := GetQuerier(ctx, r.db)
	return scanPayment(q.QueryRow(ctx, paymentSelect+` WHERE p.id = $1 AND p.workspace_id = $2`, id, workspaceID))
}

// GetByReferenceForUpdate implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) GetByReferenceForUpdate(ctx context.Context, reference string) (payment.Payment, error) {
	q := GetQuerier(ctx, r.db)
	return scanPayment(q.QueryRow(ctx, paymentSelect+` WHERE p.reference = $1 FOR UPDATE OF p`, reference))
}

// GetByIDForUpdate implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) GetByIDForUpdate(ctx context.Context, id string) (payment.Payment, error) {
	q := GetQuerier(ctx, r.db)
	return scanPayment(q.QueryRow(ctx, paymentSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id))
}

// List implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) List(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("p.workspace_id = ?", filter.WorkspaceID)
	if filter.InvoiceID != nil {
		where.add("p.invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		where.add("p.status = ?", *filter.Status)
	}
	if filter.Method != nil {
		where.add("p.method = ?", *filter.Method)
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM payments p WHERE "+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`, paymentSelect, where.String(), where.next(), where.next()+1)

	payments, err := r.list(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// ListByInvoice implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) ListByInvoice(ctx context.Context, invoiceID string) ([]payment.Payment, error) {
	return r.list(ctx, paymentSelect+` WHERE p.invoice_id = $1 ORDER BY p.created_at`, invoiceID)
}

// ListForReconciliation implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) ListForReconciliation(ctx context.Context, since time.Time, limit int) ([]payment.Payment, error) {
	return r.list(ctx, paymentSelect+`
		WHERE p.method IN ('paystack', 'stripe', 'xendit')
		  AND (p.status = 'pending' OR (p.status = 'success' AND p.updated_at >= $1))
		  AND p.created_at >= $1
		ORDER BY p.created_at
		LIMIT $2`, since, limit)
}

// Update implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) Update(ctx context.Context, p payment.Payment) error {
	q := GetQuerier(ctx, r.db)

	metadata, err := json.Marshal(orEmptyMap(p.Metadata))
	if err != nil {
		return err
	}

	query := `
		UPDATE payments
		SET status = $1, provider_reference = $2, checkout_url = $3, fee_amount = $4, net_amount = $5,
			notes = $6, metadata = $7, paid_at = $8, updated_at = NOW()
		WHERE id = $9
	`
	return execOne(ctx, q, query, p.Status, p.ProviderReference, p.CheckoutURL, p.FeeAmount, p.NetAmount, p.Notes, metadata, p.PaidAt, p.ID)
}

// ==================== Transactions ====================

// CreateTransaction implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) CreateTransaction(ctx context.Context, t payment.Transaction) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO transactions (id, workspace_id, payment_id, transaction_type, amount, currency, status, external_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.Exec(ctx, query, newID(t.ID), t.WorkspaceID, t.PaymentID, t.Type, t.Amount, t.Currency, t.Status, t.ExternalID, t.Description)
	return err
}

// ListTransactions implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) ListTransactions(ctx context.Context, workspaceID string, page, limit int) ([]payment.Transaction, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE workspace_id = $1`, workspaceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	limit, offset := paginate(page, limit)
	rows, err := q.Query(ctx, `
		SELECT id, workspace_id, payment_id, transaction_type, amount, currency, status, external_id, description, created_at
		FROM transactions
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []payment.Transaction
	for rows.Next() {
		var t payment.Transaction
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.PaymentID, &t.Type, &t.Amount, &t.Currency, &t.Status, &t.ExternalID, &t.Description, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		txs = append(txs, t)
	}
	return txs, total, rows.Err()
}

// ==================== Audit ====================

// CreateAuditLog implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) CreateAuditLog(ctx context.Context, a payment.AuditLog) error {
	q := GetQuerier(ctx, r.db)

	details, err := json.Marshal(orEmptyMap(a.Details))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO payment_audit_logs (id, payment_id, user_id, action, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = q.Exec(ctx, query, newID(a.ID), a.PaymentID, a.UserID, a.Action, details, a.IPAddress)
	return err
}

// ListAuditLogs implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) ListAuditLogs(ctx context.Context, paymentID string) ([]payment.AuditLog, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, payment_id, user_id, action, details, ip_address, created_at
		FROM payment_audit_logs
		WHERE payment_id = $1
		ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []payment.AuditLog
	for rows.Next() {
		var a payment.AuditLog
		var details []byte
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.UserID, &a.Action, &details, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}

// ==================== Webhook events ====================

// WebhookEventExists implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) WebhookEventExists(ctx context.Context, provider, eventID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM webhook_events WHERE provider = $1 AND event_id = $2)`, provider, eventID).Scan(&exists)
	return exists, err
}

// CreateWebhookEvent implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) CreateWebhookEvent(ctx context.Context, e payment.WebhookEvent) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO webhook_events (id, provider, event_id, event_type, reference, payload_hash, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	tag, err := q.Exec(ctx, query, newID(e.ID), e.Provider, e.EventID, e.EventType, e.Reference, e.PayloadHash, e.IPAddress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ==================== Reconciliation ====================

const reconciliationColumns = `id, payment_id, expected_amount, actual_amount, expected_currency, actual_currency,
		expected_status, actual_status, amount_match, currency_match, status_match, result, error_code,
		error_message, retry_count, created_at, updated_at`

func scanReconciliation(row interface{ Scan(dest ...any) error }) (payment.Reconciliation, error) {
	var rc payment.Reconciliation
	err := row.Scan(
		&rc.ID, &rc.PaymentID, &rc.ExpectedAmount, &rc.ActualAmount, &rc.ExpectedCurrency, &rc.ActualCurrency,
		&rc.ExpectedStatus, &rc.ActualStatus, &rc.AmountMatch, &rc.CurrencyMatch, &rc.StatusMatch, &rc.Result,
		&rc.ErrorCode, &rc.ErrorMessage, &rc.RetryCount, &rc.CreatedAt, &rc.UpdatedAt,
	)
	return rc, err
}

// CreateReconciliation implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) CreateReconciliation(ctx context.Context, rc payment.Reconciliation) (payment.Reconciliation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payment_reconciliations (
			id, payment_id, expected_amount, actual_amount, expected_currency, actual_currency, expected_status,
			actual_status, amount_match, currency_match, status_match, result, error_code, error_message, retry_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + reconciliationColumns

	return scanReconciliation(q.QueryRow(ctx, query,
		newID(rc.ID), rc.PaymentID, rc.ExpectedAmount, rc.ActualAmount, rc.ExpectedCurrency, rc.ActualCurrency, rc.ExpectedStatus,
		rc.ActualStatus, rc.AmountMatch, rc.CurrencyMatch, rc.StatusMatch, rc.Result, rc.ErrorCode, rc.ErrorMessage, rc.RetryCount,
	))
}

// UpdateReconciliation implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) UpdateReconciliation(ctx context.Context, rc payment.Reconciliation) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payment_reconciliations
		SET actual_amount = $1, actual_currency = $2, actual_status = $3, amount_match = $4, currency_match = $5,
			status_match = $6, result = $7, error_code = $8, error_message = $9, retry_count = $10, updated_at = NOW()
		WHERE id = $11
	`
	return execOne(ctx, q, query,
		rc.ActualAmount, rc.ActualCurrency, rc.ActualStatus, rc.AmountMatch, rc.CurrencyMatch,
		rc.StatusMatch, rc.Result, rc.ErrorCode, rc.ErrorMessage, rc.RetryCount, rc.ID,
	)
}

// GetReconciliation implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) GetReconciliation(ctx context.Context, id string) (payment.Reconciliation, error) {
	q := GetQuerier(ctx, r.db)
	return scanReconciliation(q.QueryRow(ctx, `SELECT `+reconciliationColumns+` FROM payment_reconciliations WHERE id = $1`, id))
}

// ==================== Recovery ====================

// CreateRecovery implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) CreateRecovery(ctx context.Context, rc payment.Recovery) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payment_recoveries (id, payment_id, reconciliation_id, attempt_number, max_attempts, strategy, status, next_retry_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.Exec(ctx, query,
		newID(rc.ID), rc.PaymentID, rc.ReconciliationID, rc.AttemptNumber, rc.MaxAttempts, rc.Strategy, rc.Status, rc.NextRetryAt, rc.LastError,
	)
	return err
}

// UpdateRecovery implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) UpdateRecovery(ctx context.Context, rc payment.Recovery) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payment_recoveries
		SET attempt_number = $1, status = $2, next_retry_at = $3, last_error = $4, completed_at = $5
		WHERE id = $6
	`
	return execOne(ctx, q, query, rc.AttemptNumber, rc.Status, rc.NextRetryAt, rc.LastError, rc.CompletedAt, rc.ID)
}

// ListDueRecoveries implements payment.PaymentRepository.
func (r *paymentRepositoryImpl) ListDueRecoveries(ctx context.Context, now time.Time, limit int) ([]payment.Recovery, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, payment_id, reconciliation_id, attempt_number, max_attempts, strategy, status,
			   next_retry_at, last_error, completed_at, created_at
		FROM payment_recoveries
		WHERE status = 'pending' AND next_retry_at <= $1
		ORDER BY next_retry_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recoveries: %w", err)
	}
	defer rows.Close()

	var recoveries []payment.Recovery
	for rows.Next() {
		var rc payment.Recovery
		if err := rows.Scan(
			&rc.ID, &rc.PaymentID, &rc.ReconciliationID, &rc.AttemptNumber, &rc.MaxAttempts, &rc.Strategy, &rc.Status,
			&rc.NextRetryAt, &rc.LastError, &rc.CompletedAt, &rc.CreatedAt,
		); err != nil {
			return nil, err
		}
		recoveries = append(recoveries, rc)
	}
	return recoveries, rows.Err()
}
