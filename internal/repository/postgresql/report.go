package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

// spendStatuses are the expense states that count as money spent
const spendStatuses = `('approved', 'reimbursed', 'billed')`

type reportRepositoryImpl struct {
	db *database.DB
}

func NewReportRepository(db *database.DB) report.ReportRepository {
	return &reportRepositoryImpl{db: db}
}

func (r *reportRepositoryImpl) groupTotals(ctx context.Context, query string, args ...any) ([]report.GroupTotal, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run report query: %w", err)
	}
	defer rows.Close()

	totals := []report.GroupTotal{}
	for rows.Next() {
		var g report.GroupTotal
		if err := rows.Scan(&g.Key, &g.Label, &g.Count, &g.Total, &g.Collected); err != nil {
			return nil, err
		}
		totals = append(totals, g)
	}
	return totals, rows.Err()
}

func (r *reportRepositoryImpl) periodTotals(ctx context.Context, query string, args ...any) ([]report.PeriodTotal, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run report query: %w", err)
	}
	defer rows.Close()

	totals := []report.PeriodTotal{}
	for rows.Next() {
		var p report.PeriodTotal
		if err := rows.Scan(&p.Period, &p.Count, &p.Total); err != nil {
			return nil, err
		}
		totals = append(totals, p)
	}
	return totals, rows.Err()
}

// ==================== Revenue ====================

// RevenueSummary implements report.ReportRepository. Only the invoice side is filled.
func (r *reportRepositoryImpl) RevenueSummary(ctx context.Context, workspaceID string, from, to time.Time) (report.RevenueSummary, error) {
	q := GetQuerier(ctx, r.db)

	var s report.RevenueSummary
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(subtotal), 0), COALESCE(SUM(tax_total), 0),
			   COALESCE(SUM(discount_total), 0), COUNT(*), COALESCE(AVG(total_amount), 0),
			   COALESCE(MAX(total_amount), 0), COALESCE(MIN(total_amount), 0)
		FROM invoices
		WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status <> 'void'`,
		workspaceID, from, to,
	).Scan(&s.TotalInvoiced, &s.Subtotal, &s.TaxTotal, &s.DiscountTotal, &s.InvoiceCount, &s.AvgInvoice, &s.MaxInvoice, &s.MinInvoice)
	if err != nil {
		return report.RevenueSummary{}, fmt.Errorf("failed to summarize revenue: %w", err)
	}
	s.AvgInvoice = s.AvgInvoice.Round(2)
	return s, nil
}

// CollectedSummary implements report.ReportRepository.
func (r *reportRepositoryImpl) CollectedSummary(ctx context.Context, workspaceID string, from, to time.Time) (decimal.Decimal, int, error) {
	q := GetQuerier(ctx, r.db)

	var total decimal.Decimal
	var count int
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM payments
		WHERE workspace_id = $1 AND status = 'success' AND paid_at::date BETWEEN $2 AND $3`,
		workspaceID, from, to,
	).Scan(&total, &count)
	return total, count, err
}

// InvoiceStatusBreakdown implements report.ReportRepository.
func (r *reportRepositoryImpl) InvoiceStatusBreakdown(ctx context.Context, workspaceID string, from, to time.Time) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT status, '', COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(amount_paid), 0)
		FROM invoices
		WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status <> 'void'
		GROUP BY status
		ORDER BY SUM(total_amount) DESC`, workspaceID, from, to)
}

// RevenueTrend implements report.ReportRepository.
func (r *reportRepositoryImpl) RevenueTrend(ctx context.Context, workspaceID string, from, to time.Time, groupBy string) ([]report.TrendPoint, error) {
	q := GetQuerier(ctx, r.db)

	trunc, format := "month", "YYYY-MM"
	switch groupBy {
	case report.GroupByDay:
		trunc, format = "day", "YYYY-MM-DD"
	case report.GroupByWeek:
		trunc, format = "week", "YYYY-MM-DD"
	}

	query := fmt.Sprintf(`
		SELECT TO_CHAR(DATE_TRUNC('%s', issue_date), '%s') AS period,
			   COALESCE(SUM(total_amount), 0), COALESCE(SUM(amount_paid), 0), COUNT(*)
		FROM invoices
		WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status <> 'void'
		GROUP BY period
		ORDER BY period`, trunc, format)

	rows, err := q.Query(ctx, query, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue trend: %w", err)
	}
	defer rows.Close()

	points := []report.TrendPoint{}
	for rows.Next() {
		var p report.TrendPoint
		if err := rows.Scan(&p.Period, &p.Invoiced, &p.Collected, &p.Count); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// RevenueByClient implements report.ReportRepository.
func (r *reportRepositoryImpl) RevenueByClient(ctx context.Context, workspaceID string, from, to time.Time, limit int) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT c.id::text, c.name, COUNT(*), COALESCE(SUM(i.total_amount), 0), COALESCE(SUM(i.amount_paid), 0)
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.workspace_id = $1 AND i.issue_date BETWEEN $2 AND $3 AND i.status <> 'void'
		GROUP BY c.id, c.name
		ORDER BY SUM(i.total_amount) DESC
		LIMIT $4`, workspaceID, from, to, limit)
}

// RevenueByCurrency implements report.ReportRepository.
func (r *reportRepositoryImpl) RevenueByCurrency(ctx context.Context, workspaceID string, from, to time.Time) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT currency, '', COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(amount_paid), 0)
		FROM invoices
		WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status <> 'void'
		GROUP BY currency
		ORDER BY SUM(total_amount) DESC`, workspaceID, from, to)
}

// ==================== Receivables ====================

// OpenInvoices implements report.ReportRepository.
func (r *reportRepositoryImpl) OpenInvoices(ctx context.Context, workspaceID string) ([]report.OpenInvoice, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT i.id, i.invoice_number, i.client_id, c.name, i.issue_date, i.due_date,
			   i.total_amount, i.amount_paid, i.amount_due, i.currency
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.workspace_id = $1
		  AND i.status IN ('sent', 'viewed', 'part_paid', 'overdue')
		  AND i.amount_due > 0
		ORDER BY i.due_date`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}
	defer rows.Close()

	invoices := []report.OpenInvoice{}
	for rows.Next() {
		var inv report.OpenInvoice
		if err := rows.Scan(
			&inv.ID, &inv.InvoiceNumber, &inv.ClientID, &inv.ClientName, &inv.IssueDate, &inv.DueDate,
			&inv.TotalAmount, &inv.AmountPaid, &inv.AmountDue, &inv.Currency,
		); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ==================== Cash flow ====================

// PaymentsByMonth implements report.ReportRepository.
func (r *reportRepositoryImpl) PaymentsByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]report.PeriodTotal, error) {
	return r.periodTotals(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('month', paid_at), 'YYYY-MM') AS period, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE workspace_id = $1 AND status = 'success' AND paid_at::date BETWEEN $2 AND $3
		GROUP BY period
		ORDER BY period`, workspaceID, from, to)
}

// PaymentsByMethod implements report.ReportRepository.
func (r *reportRepositoryImpl) PaymentsByMethod(ctx context.Context, workspaceID string, from, to time.Time) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT method, '', COUNT(*), COALESCE(SUM(amount), 0), 0::numeric
		FROM payments
		WHERE workspace_id = $1 AND status = 'success' AND paid_at::date BETWEEN $2 AND $3
		GROUP BY method
		ORDER BY SUM(amount) DESC`, workspaceID, from, to)
}

// ExpensesByMonth implements report.ReportRepository.
func (r *reportRepositoryImpl) ExpensesByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]report.PeriodTotal, error) {
	return r.periodTotals(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('month', expense_date), 'YYYY-MM') AS period, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM expenses
		WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3 AND status IN `+spendStatuses+`
		GROUP BY period
		ORDER BY period`, workspaceID, from, to)
}

// ExpensesByCategory implements report.ReportRepository.
func (r *reportRepositoryImpl) ExpensesByCategory(ctx context.Context, workspaceID string, from, to time.Time) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT COALESCE(c.id::text, ''), COALESCE(c.name, 'Uncategorized'), COUNT(*), COALESCE(SUM(e.total_amount), 0), 0::numeric
		FROM expenses e
		LEFT JOIN expense_categories c ON c.id = e.category_id
		WHERE e.workspace_id = $1 AND e.expense_date BETWEEN $2 AND $3 AND e.status IN `+spendStatuses+`
		GROUP BY c.id, c.name
		ORDER BY SUM(e.total_amount) DESC`, workspaceID, from, to)
}

// ClientProfitability implements report.ReportRepository.
func (r *reportRepositoryImpl) ClientProfitability(ctx context.Context, workspaceID string, from, to time.Time) ([]report.ClientProfit, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT c.id, c.name,
			   COALESCE(inv.invoiced, 0), COALESCE(inv.collected, 0), COALESCE(inv.cnt, 0),
			   COALESCE(exp.total, 0), COALESCE(exp.cnt, 0)
		FROM clients c
		LEFT JOIN (
			SELECT client_id, SUM(total_amount) AS invoiced, SUM(amount_paid) AS collected, COUNT(*) AS cnt
			FROM invoices
			WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status <> 'void'
			GROUP BY client_id
		) inv ON inv.client_id = c.id
		LEFT JOIN (
			SELECT client_id, SUM(total_amount) AS total, COUNT(*) AS cnt
			FROM expenses
			WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3 AND status IN `+spendStatuses+`
			GROUP BY client_id
		) exp ON exp.client_id = c.id
		WHERE c.workspace_id = $1
		ORDER BY c.name`, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load client profitability: %w", err)
	}
	defer rows.Close()

	var clients []report.ClientProfit
	for rows.Next() {
		var c report.ClientProfit
		if err := rows.Scan(
			&c.ClientID, &c.ClientName,
			&c.TotalInvoiced, &c.TotalCollected, &c.InvoiceCount,
			&c.TotalExpenses, &c.ExpenseCount,
		); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// ==================== Tax ====================

// TaxCollected implements report.ReportRepository.
func (r *reportRepositoryImpl) TaxCollected(ctx context.Context, workspaceID string, from, to time.Time) (report.TaxTotals, error) {
	q := GetQuerier(ctx, r.db)

	var t report.TaxTotals
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(tax_total), 0), COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM invoices
		WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status = 'paid'`,
		workspaceID, from, to,
	).Scan(&t.TotalTax, &t.Count, &t.TotalAmount)
	return t, err
}

// TaxByRate implements report.ReportRepository.
func (r *reportRepositoryImpl) TaxByRate(ctx context.Context, workspaceID string, from, to time.Time) ([]report.TaxRateTotal, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT it.tax_rate, COALESCE(SUM(it.tax_amount), 0), COALESCE(SUM(it.subtotal), 0), COUNT(*)
		FROM invoice_items it
		JOIN invoices i ON i.id = it.invoice_id
		WHERE i.workspace_id = $1 AND i.issue_date BETWEEN $2 AND $3 AND i.status = 'paid'
		GROUP BY it.tax_rate
		ORDER BY it.tax_rate DESC`, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax by rate: %w", err)
	}
	defer rows.Close()

	totals := []report.TaxRateTotal{}
	for rows.Next() {
		var t report.TaxRateTotal
		if err := rows.Scan(&t.TaxRate, &t.TaxAmount, &t.TaxableAmount, &t.ItemCount); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TaxCollectedByMonth implements report.ReportRepository.
func (r *reportRepositoryImpl) TaxCollectedByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]report.PeriodTotal, error) {
	return r.periodTotals(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('month', issue_date), 'YYYY-MM') AS period, COUNT(*), COALESCE(SUM(tax_total), 0)
		FROM invoices
		WHERE workspace_id = $1 AND issue_date BETWEEN $2 AND $3 AND status = 'paid'
		GROUP BY period
		ORDER BY period`, workspaceID, from, to)
}

// TaxPaid implements report.ReportRepository.
func (r *reportRepositoryImpl) TaxPaid(ctx context.Context, workspaceID string, from, to time.Time) (report.TaxTotals, error) {
	q := GetQuerier(ctx, r.db)

	var t report.TaxTotals
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(tax_amount), 0), COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM expenses
		WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3 AND status IN `+spendStatuses,
		workspaceID, from, to,
	).Scan(&t.TotalTax, &t.Count, &t.TotalAmount)
	return t, err
}

// TaxPaidByMonth implements report.ReportRepository.
func (r *reportRepositoryImpl) TaxPaidByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]report.PeriodTotal, error) {
	return r.periodTotals(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('month', expense_date), 'YYYY-MM') AS period, COUNT(*), COALESCE(SUM(tax_amount), 0)
		FROM expenses
		WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3 AND status IN `+spendStatuses+`
		GROUP BY period
		ORDER BY period`, workspaceID, from, to)
}

// ==================== Expenses ====================

// ExpenseTotals implements report.ReportRepository.
func (r *reportRepositoryImpl) ExpenseTotals(ctx context.Context, workspaceID string, from, to time.Time) (report.ExpenseTotals, error) {
	q := GetQuerier(ctx, r.db)

	var t report.ExpenseTotals
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(tax_amount), 0), COALESCE(SUM(total_amount), 0),
			   COUNT(*), COALESCE(AVG(total_amount), 0)
		FROM expenses
		WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3 AND status IN `+spendStatuses,
		workspaceID, from, to,
	).Scan(&t.TotalAmount, &t.TotalTax, &t.TotalWithTax, &t.ExpenseCount, &t.AvgExpense)
	if err != nil {
		return report.ExpenseTotals{}, fmt.Errorf("failed to total expenses: %w", err)
	}
	t.AvgExpense = t.AvgExpense.Round(2)
	return t, nil
}

// ExpensesByStatus implements report.ReportRepository.
func (r *reportRepositoryImpl) ExpensesByStatus(ctx context.Context, workspaceID string, from, to time.Time) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT status, '', COUNT(*), COALESCE(SUM(total_amount), 0), 0::numeric
		FROM expenses
		WHERE workspace_id = $1 AND expense_date BETWEEN $2 AND $3
		GROUP BY status
		ORDER BY status`, workspaceID, from, to)
}

// ExpensesByVendor implements report.ReportRepository.
func (r *reportRepositoryImpl) ExpensesByVendor(ctx context.Context, workspaceID string, from, to time.Time) ([]report.GroupTotal, error) {
	return r.groupTotals(ctx, `
		SELECT v.id::text, v.name, COUNT(*), COALESCE(SUM(e.total_amount), 0), 0::numeric
		FROM expenses e
		JOIN vendors v ON v.id = e.vendor_id
		WHERE e.workspace_id = $1 AND e.expense_date BETWEEN $2 AND $3 AND e.status IN `+spendStatuses+`
		GROUP BY v.id, v.name
		ORDER BY SUM(e.total_amount) DESC
		LIMIT 10`, workspaceID, from, to)
}

// ==================== Shared links ====================

const sharedLinkColumns = `id, workspace_id, created_by, token, report_type, report_params, name, is_active,
		expires_at, password_hash, view_count, last_viewed_at, created_at, updated_at`

func scanSharedLink(row interface{ Scan(dest ...any) error }) (report.SharedLink, error) {
	var l report.SharedLink
	var params []byte
	err := row.Scan(
		&l.ID, &l.WorkspaceID, &l.CreatedBy, &l.Token, &l.ReportType, &params, &l.Name, &l.IsActive,
		&l.ExpiresAt, &l.PasswordHash, &l.ViewCount, &l.LastViewedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return report.SharedLink{}, err
	}
	if err := json.Unmarshal(params, &l.ReportParams); err != nil {
		return report.SharedLink{}, fmt.Errorf("failed to decode report params: %w", err)
	}
	return l, nil
}

// CreateSharedLink implements report.ReportRepository.
func (r *reportRepositoryImpl) CreateSharedLink(ctx context.Context, link report.SharedLink) (report.SharedLink, error) {
	q := GetQuerier(ctx, r.db)

	params := link.ReportParams
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return report.SharedLink{}, err
	}

	query := `
		INSERT INTO shared_report_links (id, workspace_id, created_by, token, report_type, report_params, name, is_active, expires_at, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + sharedLinkColumns

	return scanSharedLink(q.QueryRow(ctx, query,
		newID(link.ID), link.WorkspaceID, link.CreatedBy, link.Token, link.ReportType, encoded, link.Name,
		link.IsActive, link.ExpiresAt, link.PasswordHash,
	))
}

// GetSharedLinkByToken implements report.ReportRepository.
func (r *reportRepositoryImpl) GetSharedLinkByToken(ctx context.Context, token string) (report.SharedLink, error) {
	q := GetQuerier(ctx, r.db)
	return scanSharedLink(q.QueryRow(ctx, `SELECT `+sharedLinkColumns+` FROM shared_report_links WHERE token = $1`, token))
}

// ListSharedLinks implements report.ReportRepository.
func (r *reportRepositoryImpl) ListSharedLinks(ctx context.Context, workspaceID string) ([]report.SharedLink, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+sharedLinkColumns+`
		FROM shared_report_links
		WHERE workspace_id = $1
		ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared links: %w", err)
	}
	defer rows.Close()

	var links []report.SharedLink
	for rows.Next() {
		l, err := scanSharedLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// RecordView implements report.ReportRepository.
func (r *reportRepositoryImpl) RecordView(ctx context.Context, linkID string, at time.Time) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `
		UPDATE shared_report_links
		SET view_count = view_count + 1, last_viewed_at = $1
		WHERE id = $2`, at, linkID)
}

// DeactivateSharedLink implements report.ReportRepository.
func (r *reportRepositoryImpl) DeactivateSharedLink(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `
		UPDATE shared_report_links
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// LogAccess implements report.ReportRepository.
func (r *reportRepositoryImpl) LogAccess(ctx context.Context, log report.AccessLog) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO report_access_logs (id, shared_link_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4)`, newID(log.ID), log.SharedLinkID, log.IPAddress, log.UserAgent)
	return err
}
