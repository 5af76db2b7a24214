package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `i.id, i.workspace_id, i.client_id, i.created_by, i.invoice_number, i.status, i.source_type,
		i.source_id, i.issue_date, i.due_date, i.sent_at, i.first_viewed_at, i.paid_at, i.voided_at, i.void_reason,
		i.currency, i.exchange_rate, i.subtotal, i.tax_total, i.discount_total, i.total_amount, i.amount_paid,
		i.amount_due, i.tax_mode, i.discount_type, i.global_discount_value, i.global_discount_amount,
		i.client_memo, i.internal_notes, i.terms_conditions, i.public_token, i.view_count, i.last_viewed_at,
		i.last_viewed_ip, i.pdf_key, i.created_at, i.updated_at,
		c.name, c.email`

const invoiceSelect = `SELECT ` + invoiceColumns + ` FROM invoices i JOIN clients c ON c.id = i.client_id`

type invoiceRepositoryImpl struct {
	db *database.DB
}

func NewInvoiceRepository(db *database.DB) invoice.InvoiceRepository {
	return &invoiceRepositoryImpl{db: db}
}

func scanInvoice(row interface{ Scan(dest ...any) error }) (invoice.Invoice, error) {
	var i invoice.Invoice
	err := row.Scan(
		&i.ID, &i.WorkspaceID, &i.ClientID, &i.CreatedBy, &i.InvoiceNumber, &i.Status, &i.SourceType,
		&i.SourceID, &i.IssueDate, &i.DueDate, &i.SentAt, &i.FirstViewedAt, &i.PaidAt, &i.VoidedAt, &i.VoidReason,
		&i.Currency, &i.ExchangeRate, &i.Subtotal, &i.TaxTotal, &i.DiscountTotal, &i.TotalAmount, &i.AmountPaid,
		&i.AmountDue, &i.TaxMode, &i.DiscountType, &i.GlobalDiscountValue, &i.GlobalDiscountAmount,
		&i.ClientMemo, &i.InternalNotes, &i.TermsConditions, &i.PublicToken, &i.ViewCount, &i.LastViewedAt,
		&i.LastViewedIP, &i.PDFKey, &i.CreatedAt, &i.UpdatedAt,
		&i.ClientName, &i.ClientEmail,
	)
	return i, err
}

func (r *invoiceRepositoryImpl) list(ctx context.Context, query string, args ...any) ([]invoice.Invoice, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepositoryImpl) loadItems(ctx context.Context, inv *invoice.Invoice) error {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, discount_type,
			   discount_value, discount_amount, subtotal, total, sort_order
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY sort_order, id`, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoice items: %w", err)
	}
	defer rows.Close()

	inv.Items = nil
	for rows.Next() {
		var it invoice.Item
		if err := rows.Scan(
			&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.TaxAmount,
			&it.DiscountType, &it.DiscountValue, &it.DiscountAmount, &it.Subtotal, &it.Total, &it.SortOrder,
		); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}

func (r *invoiceRepositoryImpl) getOne(ctx context.Context, query string, args ...any) (invoice.Invoice, error) {
	q := GetQuerier(ctx, r.db)

	inv, err := scanInvoice(q.QueryRow(ctx, query, args...))
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := r.loadItems(ctx, &inv); err != nil {
		return invoice.Invoice{}, err
	}
	return inv, nil
}

// Create implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) Create(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	q := GetQuerier(ctx, r.db)

	inv.ID = newID(inv.ID)
	query := `
		INSERT INTO invoices (
			id, workspace_id, client_id, created_by, invoice_number, status, source_type, source_id,
			issue_date, due_date, currency, exchange_rate, subtotal, tax_total, discount_total, total_amount,
			amount_paid, amount_due, tax_mode, discount_type, global_discount_value, global_discount_amount,
			client_memo, internal_notes, terms_conditions, public_token
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22, $23, $24, $25, $26)
	`
	_, err := q.Exec(ctx, query,
		inv.ID, inv.WorkspaceID, inv.ClientID, inv.CreatedBy, inv.InvoiceNumber, inv.Status, inv.SourceType, inv.SourceID,
		inv.IssueDate, inv.DueDate, inv.Currency, inv.ExchangeRate, inv.Subtotal, inv.TaxTotal, inv.DiscountTotal, inv.TotalAmount,
		inv.AmountPaid, inv.AmountDue, inv.TaxMode, inv.DiscountType, inv.GlobalDiscountValue, inv.GlobalDiscountAmount,
		inv.ClientMemo, inv.InternalNotes, inv.TermsConditions, inv.PublicToken,
	)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("failed to insert invoice: %w", err)
	}

	if err := r.ReplaceItems(ctx, inv.ID, inv.Items); err != nil {
		return invoice.Invoice{}, err
	}
	return r.getOne(ctx, invoiceSelect+` WHERE i.id = $1`, inv.ID)
}

// GetByID implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (invoice.Invoice, error) {
	return r.getOne(ctx, invoiceSelect+` WHERE i.id = $1 AND i.workspace_id = $2`, id, workspaceID)
}

// GetByIDForUpdate implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) GetByIDForUpdate(ctx context.Context, id string) (invoice.Invoice, error) {
	return r.getOne(ctx, invoiceSelect+` WHERE i.id = $1 FOR UPDATE OF i`, id)
}

// GetByPublicToken implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) GetByPublicToken(ctx context.Context, token string) (invoice.Invoice, error) {
	return r.getOne(ctx, invoiceSelect+` WHERE i.public_token = $1`, token)
}

// List implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) List(ctx context.Context, filter invoice.InvoiceFilter) ([]invoice.Invoice, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("i.workspace_id = ?", filter.WorkspaceID)
	if filter.Status != nil {
		where.add("i.status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		where.add("i.client_id = ?", *filter.ClientID)
	}
	if filter.DateFrom != nil {
		where.add("i.issue_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where.add("i.issue_date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		where.add("(i.invoice_number ILIKE ? OR c.name ILIKE ?)", search, search)
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM invoices i JOIN clients c ON c.id = i.client_id WHERE " + where.String()
	if err := q.QueryRow(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY i.issue_date DESC, i.created_at DESC
		LIMIT $%d OFFSET $%d`, invoiceSelect, where.String(), where.next(), where.next()+1)

	invoices, err := r.list(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// Update implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) Update(ctx context.Context, inv invoice.Invoice) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invoices
		SET status = $1, issue_date = $2, due_date = $3, sent_at = $4, first_viewed_at = $5, paid_at = $6,
			voided_at = $7, void_reason = $8, currency = $9, exchange_rate = $10, subtotal = $11, tax_total = $12,
			discount_total = $13, total_amount = $14, amount_paid = $15, amount_due = $16, tax_mode = $17,
			discount_type = $18, global_discount_value = $19, global_discount_amount = $20, client_memo = $21,
			internal_notes = $22, terms_conditions = $23, public_token = $24, view_count = $25,
			last_viewed_at = $26, last_viewed_ip = $27, pdf_key = $28, updated_at = NOW()
		WHERE id = $29
	`
	return execOne(ctx, q, query,
		inv.Status, inv.IssueDate, inv.DueDate, inv.SentAt, inv.FirstViewedAt, inv.PaidAt,
		inv.VoidedAt, inv.VoidReason, inv.Currency, inv.ExchangeRate, inv.Subtotal, inv.TaxTotal,
		inv.DiscountTotal, inv.TotalAmount, inv.AmountPaid, inv.AmountDue, inv.TaxMode,
		inv.DiscountType, inv.GlobalDiscountValue, inv.GlobalDiscountAmount, inv.ClientMemo,
		inv.InternalNotes, inv.TermsConditions, inv.PublicToken, inv.ViewCount,
		inv.LastViewedAt, inv.LastViewedIP, inv.PDFKey, inv.ID,
	)
}

// ReplaceItems implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) ReplaceItems(ctx context.Context, invoiceID string, items []invoice.Item) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for idx, it := range items {
		batch.Queue(`
			INSERT INTO invoice_items (
				id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, discount_type,
				discount_value, discount_amount, subtotal, total, sort_order
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			newID(it.ID), invoiceID, it.Description, it.Quantity, it.UnitPrice, it.TaxRate, it.TaxAmount, it.DiscountType,
			it.DiscountValue, it.DiscountAmount, it.Subtotal, it.Total, idx,
		)
	}
	return sendBatch(ctx, q, batch)
}

// Delete implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM invoices WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// ListOverdueCandidates implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) ListOverdueCandidates(ctx context.Context, day time.Time) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+`
		WHERE i.status IN ('sent', 'viewed', 'part_paid') AND i.due_date < $1 AND i.amount_due > 0
		ORDER BY i.due_date`, day)
}

// ListOpenDueOn implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) ListOpenDueOn(ctx context.Context, workspaceID string, day time.Time) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+`
		WHERE i.workspace_id = $1 AND i.due_date = $2 AND i.amount_due > 0
		  AND i.status IN ('sent', 'viewed', 'part_paid', 'overdue')
		ORDER BY i.invoice_number`, workspaceID, day)
}

// ListByClient implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) ListByClient(ctx context.Context, workspaceID, clientID string) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+`
		WHERE i.workspace_id = $1 AND i.client_id = $2 AND i.status NOT IN ('draft', 'void')
		ORDER BY i.issue_date, i.created_at`, workspaceID, clientID)
}

// CountActiveByClient implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) CountActiveByClient(ctx context.Context, clientID string) (int, error) {
	q := GetQuerier(ctx, r.db)

	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE client_id = $1 AND status <> 'void'`, clientID).Scan(&count)
	return count, err
}

// ==================== Activity ====================

// CreateActivity implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) CreateActivity(ctx context.Context, activity invoice.Activity) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO invoice_activities (id, invoice_id, user_id, action, from_status, to_status, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.Exec(ctx, query,
		newID(activity.ID), activity.InvoiceID, activity.UserID, activity.Action,
		activity.FromStatus, activity.ToStatus, activity.Details, activity.IPAddress,
	)
	return err
}

// ListActivities implements invoice.InvoiceRepository.
func (r *invoiceRepositoryImpl) ListActivities(ctx context.Context, invoiceID string) ([]invoice.Activity, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, user_id, action, from_status, to_status, details, ip_address, created_at
		FROM invoice_activities
		WHERE invoice_id = $1
		ORDER BY created_at DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []invoice.Activity
	for rows.Next() {
		var a invoice.Activity
		if err := rows.Scan(&a.ID, &a.InvoiceID, &a.UserID, &a.Action, &a.FromStatus, &a.ToStatus, &a.Details, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
