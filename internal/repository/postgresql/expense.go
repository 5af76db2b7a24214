package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ==================== Categories ====================

const categoryColumns = `id, workspace_id, name, description, color, icon, is_active, is_tax_deductible, sort_order, created_at, updated_at`

type categoryRepositoryImpl struct {
	db *database.DB
}

func NewCategoryRepository(db *database.DB) expense.CategoryRepository {
	return &categoryRepositoryImpl{db: db}
}

func scanCategory(row interface{ Scan(dest ...any) error }) (expense.Category, error) {
	var c expense.Category
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Description, &c.Color, &c.Icon, &c.IsActive, &c.IsTaxDeductible, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create implements expense.CategoryRepository.
func (r *categoryRepositoryImpl) Create(ctx context.Context, c expense.Category) (expense.Category, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO expense_categories (id, workspace_id, name, description, color, icon, is_active, is_tax_deductible, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + categoryColumns

	return scanCategory(q.QueryRow(ctx, query,
		newID(c.ID), c.WorkspaceID, c.Name, c.Description, c.Color, c.Icon, c.IsActive, c.IsTaxDeductible, c.SortOrder,
	))
}

// CreateMany implements expense.CategoryRepository. Existing names are skipped.
func (r *categoryRepositoryImpl) CreateMany(ctx context.Context, categories []expense.Category) error {
	q := GetQuerier(ctx, r.db)

	batch := &pgx.Batch{}
	for _, c := range categories {
		batch.Queue(`
			INSERT INTO expense_categories (id, workspace_id, name, description, color, icon, is_active, is_tax_deductible, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (workspace_id, name) DO NOTHING`,
			newID(c.ID), c.WorkspaceID, c.Name, c.Description, c.Color, c.Icon, c.IsActive, c.IsTaxDeductible, c.SortOrder,
		)
	}
	return sendBatch(ctx, q, batch)
}

// GetByID implements expense.CategoryRepository.
func (r *categoryRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (expense.Category, error) {
	q := GetQuerier(ctx, r.db)
	return scanCategory(q.QueryRow(ctx, `SELECT `+categoryColumns+` FROM expense_categories WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
}

// NameExists implements expense.CategoryRepository.
func (r *categoryRepositoryImpl) NameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM expense_categories
			WHERE workspace_id = $1 AND LOWER(name) = LOWER($2) AND id::text <> $3
		)`, workspaceID, name, excludeID).Scan(&exists)
	return exists, err
}

// List implements expense.CategoryRepository.
func (r *categoryRepositoryImpl) List(ctx context.Context, workspaceID string, activeOnly bool) ([]expense.Category, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + categoryColumns + ` FROM expense_categories WHERE workspace_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := q.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []expense.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Update implements expense.CategoryRepository.
func (r *categoryRepositoryImpl) Update(ctx context.Context, c expense.Category) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE expense_categories
		SET name = $1, description = $2, color = $3, icon = $4, is_active = $5, is_tax_deductible = $6,
			sort_order = $7, updated_at = NOW()
		WHERE id = $8 AND workspace_id = $9
	`
	return execOne(ctx, q, query, c.Name, c.Description, c.Color, c.Icon, c.IsActive, c.IsTaxDeductible, c.SortOrder, c.ID, c.WorkspaceID)
}

// Delete implements expense.CategoryRepository.
func (r *categoryRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM expense_categories WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// ==================== Vendors ====================

const vendorColumns = `id, workspace_id, name, contact_name, email, phone, website, address, tax_id, payment_terms,
		default_category_id, notes, is_active, total_expenses, expense_count, created_at, updated_at`

type vendorRepositoryImpl struct {
	db *database.DB
}

func NewVendorRepository(db *database.DB) expense.VendorRepository {
	return &vendorRepositoryImpl{db: db}
}

func scanVendor(row interface{ Scan(dest ...any) error }) (expense.Vendor, error) {
	var v expense.Vendor
	err := row.Scan(
		&v.ID, &v.WorkspaceID, &v.Name, &v.ContactName, &v.Email, &v.Phone, &v.Website, &v.Address, &v.TaxID, &v.PaymentTerms,
		&v.DefaultCategoryID, &v.Notes, &v.IsActive, &v.TotalExpenses, &v.ExpenseCount, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// Create implements expense.VendorRepository.
func (r *vendorRepositoryImpl) Create(ctx context.Context, v expense.Vendor) (expense.Vendor, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO vendors (
			id, workspace_id, name, contact_name, email, phone, website, address, tax_id, payment_terms,
			default_category_id, notes, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + vendorColumns

	return scanVendor(q.QueryRow(ctx, query,
		newID(v.ID), v.WorkspaceID, v.Name, v.ContactName, v.Email, v.Phone, v.Website, v.Address, v.TaxID, v.PaymentTerms,
		v.DefaultCategoryID, v.Notes, v.IsActive,
	))
}

// GetByID implements expense.VendorRepository.
func (r *vendorRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (expense.Vendor, error) {
	q := GetQuerier(ctx, r.db)
	return scanVendor(q.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
}

// NameExists implements expense.VendorRepository.
func (r *vendorRepositoryImpl) NameExists(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM vendors
			WHERE workspace_id = $1 AND LOWER(name) = LOWER($2) AND id::text <> $3
		)`, workspaceID, name, excludeID).Scan(&exists)
	return exists, err
}

// List implements expense.VendorRepository.
func (r *vendorRepositoryImpl) List(ctx context.Context, workspaceID, search string, page, limit int) ([]expense.Vendor, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("workspace_id = ?", workspaceID)
	if search != "" {
		where.add("(name ILIKE ? OR contact_name ILIKE ? OR email ILIKE ?)", "%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM vendors WHERE "+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vendors: %w", err)
	}

	limit, offset := paginate(page, limit)
	query := fmt.Sprintf(`SELECT %s FROM vendors WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		vendorColumns, where.String(), where.next(), where.next()+1)

	rows, err := q.Query(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []expense.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, v)
	}
	return vendors, total, rows.Err()
}

// Update implements expense.VendorRepository.
func (r *vendorRepositoryImpl) Update(ctx context.Context, v expense.Vendor) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE vendors
		SET name = $1, contact_name = $2, email = $3, phone = $4, website = $5, address = $6, tax_id = $7,
			payment_terms = $8, default_category_id = $9, notes = $10, is_active = $11, updated_at = NOW()
		WHERE id = $12 AND workspace_id = $13
	`
	return execOne(ctx, q, query,
		v.Name, v.ContactName, v.Email, v.Phone, v.Website, v.Address, v.TaxID,
		v.PaymentTerms, v.DefaultCategoryID, v.Notes, v.IsActive, v.ID, v.WorkspaceID,
	)
}

// Delete implements expense.VendorRepository.
func (r *vendorRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM vendors WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// RefreshTotals implements expense.VendorRepository.
func (r *vendorRepositoryImpl) RefreshTotals(ctx context.Context, vendorID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE vendors v
		SET total_expenses = agg.total, expense_count = agg.cnt, updated_at = NOW()
		FROM (
			SELECT COALESCE(SUM(total_amount), 0) AS total, COUNT(*) AS cnt
			FROM expenses
			WHERE vendor_id = $1 AND status IN ('approved', 'reimbursed', 'billed')
		) agg
		WHERE v.id = $1
	`
	_, err := q.Exec(ctx, query, vendorID)
	return err
}

// ==================== Expenses ====================

const expenseSelect = `
	SELECT e.id, e.workspace_id, e.created_by, e.expense_number, e.status, e.expense_date, e.description,
		   e.amount, e.currency, e.tax_rate, e.tax_amount, e.total_amount, e.exchange_rate, e.base_currency_amount,
		   e.payment_method, e.reference_number, e.category_id, e.vendor_id, e.client_id, e.is_billable,
		   e.markup_percent, e.billable_amount, e.is_billed, e.invoice_id, e.is_reimbursable, e.tags, e.notes,
		   e.submitted_at, e.approved_by, e.approved_at, e.rejection_reason, e.reimbursed_at,
		   e.reimbursement_reference, e.created_at, e.updated_at,
		   COALESCE(c.name, ''), COALESCE(v.name, ''),
		   EXISTS(SELECT 1 FROM expense_attachments a WHERE a.expense_id = e.id)
	FROM expenses e
	LEFT JOIN expense_categories c ON c.id = e.category_id
	LEFT JOIN vendors v ON v.id = e.vendor_id
`

type expenseRepositoryImpl struct {
	db *database.DB
}

func NewExpenseRepository(db *database.DB) expense.ExpenseRepository {
	return &expenseRepositoryImpl{db: db}
}

func scanExpense(row interface{ Scan(dest ...any) error }) (expense.Expense, error) {
	var e expense.Expense
	err := row.Scan(
		&e.ID, &e.WorkspaceID, &e.CreatedBy, &e.ExpenseNumber, &e.Status, &e.ExpenseDate, &e.Description,
		&e.Amount, &e.Currency, &e.TaxRate, &e.TaxAmount, &e.TotalAmount, &e.ExchangeRate, &e.BaseCurrencyAmount,
		&e.PaymentMethod, &e.ReferenceNumber, &e.CategoryID, &e.VendorID, &e.ClientID, &e.IsBillable,
		&e.MarkupPercent, &e.BillableAmount, &e.IsBilled, &e.InvoiceID, &e.IsReimbursable, &e.Tags, &e.Notes,
		&e.SubmittedAt, &e.ApprovedBy, &e.ApprovedAt, &e.RejectionReason, &e.ReimbursedAt,
		&e.ReimbursementReference, &e.CreatedAt, &e.UpdatedAt,
		&e.CategoryName, &e.VendorName,
		&e.HasReceipt,
	)
	return e, err
}

// Create implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) Create(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	q := GetQuerier(ctx, r.db)

	e.ID = newID(e.ID)
	query := `
		INSERT INTO expenses (
			id, workspace_id, created_by, expense_number, status, expense_date, description, amount, currency,
			tax_rate, tax_amount, total_amount, exchange_rate, base_currency_amount, payment_method,
			reference_number, category_id, vendor_id, client_id, is_billable, markup_percent, billable_amount,
			is_reimbursable, tags, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22, $23, $24, $25)
	`
	_, err := q.Exec(ctx, query,
		e.ID, e.WorkspaceID, e.CreatedBy, e.ExpenseNumber, e.Status, e.ExpenseDate, e.Description, e.Amount, e.Currency,
		e.TaxRate, e.TaxAmount, e.TotalAmount, e.ExchangeRate, e.BaseCurrencyAmount, e.PaymentMethod,
		e.ReferenceNumber, e.CategoryID, e.VendorID, e.ClientID, e.IsBillable, e.MarkupPercent, e.BillableAmount,
		e.IsReimbursable, orEmptySlice(e.Tags), e.Notes,
	)
	if err != nil {
		return expense.Expense{}, fmt.Errorf("failed to insert expense: %w", err)
	}
	return scanExpense(q.QueryRow(ctx, expenseSelect+` WHERE e.id = $1`, e.ID))
}

// GetByID implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (expense.Expense, error) {
	q := GetQuerier(ctx, r.db)
	return scanExpense(q.QueryRow(ctx, expenseSelect+` WHERE e.id = $1 AND e.workspace_id = $2`, id, workspaceID))
}

// GetByIDForUpdate implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) GetByIDForUpdate(ctx context.Context, workspaceID, id string) (expense.Expense, error) {
	q := GetQuerier(ctx, r.db)
	return scanExpense(q.QueryRow(ctx, expenseSelect+` WHERE e.id = $1 AND e.workspace_id = $2 FOR UPDATE OF e`, id, workspaceID))
}

// List implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) List(ctx context.Context, filter expense.ExpenseFilter) ([]expense.Expense, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("e.workspace_id = ?", filter.WorkspaceID)
	if filter.Status != nil {
		where.add("e.status = ?", *filter.Status)
	}
	if filter.CategoryID != nil {
		where.add("e.category_id = ?", *filter.CategoryID)
	}
	if filter.VendorID != nil {
		where.add("e.vendor_id = ?", *filter.VendorID)
	}
	if filter.ClientID != nil {
		where.add("e.client_id = ?", *filter.ClientID)
	}
	if filter.IsBillable != nil {
		where.add("e.is_billable = ?", *filter.IsBillable)
	}
	if filter.IsBilled != nil {
		where.add("e.is_billed = ?", *filter.IsBilled)
	}
	if filter.DateFrom != nil {
		where.add("e.expense_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where.add("e.expense_date <= ?", *filter.DateTo)
	}
	if filter.MinAmount != nil {
		where.add("e.total_amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		where.add("e.total_amount <= ?", *filter.MaxAmount)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where.add("(e.description ILIKE ? OR e.expense_number ILIKE ? OR e.reference_number ILIKE ? OR v.name ILIKE ?)",
			pattern, pattern, pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		where.add("e.tags && ?", filter.Tags)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM expenses e LEFT JOIN vendors v ON v.id = e.vendor_id WHERE ` + where.String()
	if err := q.QueryRow(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY e.expense_date DESC, e.created_at DESC
		LIMIT $%d OFFSET $%d`, expenseSelect, where.String(), where.next(), where.next()+1)

	rows, err := q.Query(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []expense.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	return expenses, total, rows.Err()
}

// Update implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) Update(ctx context.Context, e expense.Expense) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE expenses
		SET status = $1, expense_date = $2, description = $3, amount = $4, currency = $5, tax_rate = $6,
			tax_amount = $7, total_amount = $8, exchange_rate = $9, base_currency_amount = $10,
			payment_method = $11, reference_number = $12, category_id = $13, vendor_id = $14, client_id = $15,
			is_billable = $16, markup_percent = $17, billable_amount = $18, is_billed = $19, invoice_id = $20,
			is_reimbursable = $21, tags = $22, notes = $23, submitted_at = $24, approved_by = $25,
			approved_at = $26, rejection_reason = $27, reimbursed_at = $28, reimbursement_reference = $29,
			updated_at = NOW()
		WHERE id = $30 AND workspace_id = $31
	`
	return execOne(ctx, q, query,
		e.Status, e.ExpenseDate, e.Description, e.Amount, e.Currency, e.TaxRate,
		e.TaxAmount, e.TotalAmount, e.ExchangeRate, e.BaseCurrencyAmount,
		e.PaymentMethod, e.ReferenceNumber, e.CategoryID, e.VendorID, e.ClientID,
		e.IsBillable, e.MarkupPercent, e.BillableAmount, e.IsBilled, e.InvoiceID,
		e.IsReimbursable, orEmptySlice(e.Tags), e.Notes, e.SubmittedAt, e.ApprovedBy,
		e.ApprovedAt, e.RejectionReason, e.ReimbursedAt, e.ReimbursementReference,
		e.ID, e.WorkspaceID,
	)
}

// Delete implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM expenses WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// SummaryByStatus implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) SummaryByStatus(ctx context.Context, workspaceID string, from, to time.Time) ([]expense.StatusTotal, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM expenses
		WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3
		GROUP BY status
		ORDER BY status`, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize expenses: %w", err)
	}
	defer rows.Close()

	var totals []expense.StatusTotal
	for rows.Next() {
		var t expense.StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// SummaryByCategory implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) SummaryByCategory(ctx context.Context, workspaceID string, from, to time.Time, spendOnly bool) ([]expense.CategoryTotal, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT e.category_id, COALESCE(c.name, 'Uncategorized'), COUNT(*), COALESCE(SUM(e.total_amount), 0)
		FROM expenses e
		LEFT JOIN expense_categories c ON c.id = e.category_id
		WHERE e.workspace_id = $1 AND e.expense_date BETWEEN $2 AND $3`
	if spendOnly {
		query += ` AND e.status IN ('approved', 'reimbursed', 'billed')`
	}
	query += `
		GROUP BY e.category_id, c.name
		ORDER BY SUM(e.total_amount) DESC`

	rows, err := q.Query(ctx, query, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize expenses by category: %w", err)
	}
	defer rows.Close()

	var totals []expense.CategoryTotal
	for rows.Next() {
		var t expense.CategoryTotal
		if err := rows.Scan(&t.CategoryID, &t.CategoryName, &t.Count, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// BillableTotals implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) BillableTotals(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	var billable, unbilled decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(billable_amount), 0),
			COALESCE(SUM(billable_amount) FILTER (WHERE NOT is_billed), 0)
		FROM expenses
		WHERE workspace_id = $1 AND is_billable AND status <> 'rejected' AND expense_date BETWEEN $2 AND $3`,
		workspaceID, from, to).Scan(&billable, &unbilled)
	return billable, unbilled, err
}

// PaidRevenue implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) PaidRevenue(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	var revenue decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_paid), 0)
		FROM invoices
		WHERE workspace_id = $1 AND status IN ('paid', 'part_paid') AND issue_date BETWEEN $2 AND $3`,
		workspaceID, from, to).Scan(&revenue)
	return revenue, err
}

// CreateAuditLog implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) CreateAuditLog(ctx context.Context, a expense.AuditLog) error {
	q := GetQuerier(ctx, r.db)

	details, err := json.Marshal(orEmptyMap(a.Details))
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO expense_audit_logs (id, expense_id, user_id, action, details)
		VALUES ($1, $2, $3, $4, $5)`, newID(a.ID), a.ExpenseID, a.UserID, a.Action, details)
	return err
}

// ListAuditLogs implements expense.ExpenseRepository.
func (r *expenseRepositoryImpl) ListAuditLogs(ctx context.Context, expenseID string) ([]expense.AuditLog, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, expense_id, user_id, action, details, created_at
		FROM expense_audit_logs
		WHERE expense_id = $1
		ORDER BY created_at`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []expense.AuditLog
	for rows.Next() {
		var a expense.AuditLog
		var details []byte
		if err := rows.Scan(&a.ID, &a.ExpenseID, &a.UserID, &a.Action, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}

// ==================== Attachments ====================

const attachmentColumns = `id, expense_id, file_name, content_type, size_bytes, storage_key, is_primary, uploaded_by, created_at`

type attachmentRepositoryImpl struct {
	db *database.DB
}

func NewAttachmentRepository(db *database.DB) expense.AttachmentRepository {
	return &attachmentRepositoryImpl{db: db}
}

func scanAttachment(row interface{ Scan(dest ...any) error }) (expense.Attachment, error) {
	var a expense.Attachment
	err := row.Scan(&a.ID, &a.ExpenseID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.IsPrimary, &a.UploadedBy, &a.CreatedAt)
	return a, err
}

// Create implements expense.AttachmentRepository.
func (r *attachmentRepositoryImpl) Create(ctx context.Context, a expense.Attachment) (expense.Attachment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO expense_attachments (id, expense_id, file_name, content_type, size_bytes, storage_key, is_primary, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + attachmentColumns

	return scanAttachment(q.QueryRow(ctx, query,
		newID(a.ID), a.ExpenseID, a.FileName, a.ContentType, a.SizeBytes, a.StorageKey, a.IsPrimary, a.UploadedBy,
	))
}

// GetByID implements expense.AttachmentRepository.
func (r *attachmentRepositoryImpl) GetByID(ctx context.Context, expenseID, id string) (expense.Attachment, error) {
	q := GetQuerier(ctx, r.db)
	return scanAttachment(q.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM expense_attachments WHERE id = $1 AND expense_id = $2`, id, expenseID))
}

// ListByExpense implements expense.AttachmentRepository.
func (r *attachmentRepositoryImpl) ListByExpense(ctx context.Context, expenseID string) ([]expense.Attachment, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+attachmentColumns+`
		FROM expense_attachments
		WHERE expense_id = $1
		ORDER BY is_primary DESC, created_at`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []expense.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// Delete implements expense.AttachmentRepository.
func (r *attachmentRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM expense_attachments WHERE id = $1`, id)
}

// SetPrimary implements expense.AttachmentRepository.
func (r *attachmentRepositoryImpl) SetPrimary(ctx context.Context, expenseID, id string) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `UPDATE expense_attachments SET is_primary = (id = $2) WHERE expense_id = $1`, expenseID, id)
	return err
}
