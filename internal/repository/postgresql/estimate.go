package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const estimateSelect = `
	SELECT e.id, e.workspace_id, e.client_id, e.created_by, e.estimate_number, e.status, e.issue_date,
		   e.expiry_date, e.sent_at, e.viewed_at, e.accepted_at, e.declined_at, e.currency, e.subtotal,
		   e.tax_total, e.discount_total, e.total_amount, e.client_notes, e.internal_notes, e.terms_conditions,
		   e.public_token, e.converted_invoice_id, e.created_at, e.updated_at,
		   c.name, c.email
	FROM estimates e
	JOIN clients c ON c.id = e.client_id
`

type estimateRepositoryImpl struct {
	db *database.DB
}

func NewEstimateRepository(db *database.DB) estimate.EstimateRepository {
	return &estimateRepositoryImpl{db: db}
}

func scanEstimate(row interface{ Scan(dest ...any) error }) (estimate.Estimate, error) {
	var e estimate.Estimate
	err := row.Scan(
		&e.ID, &e.WorkspaceID, &e.ClientID, &e.CreatedBy, &e.EstimateNumber, &e.Status, &e.IssueDate,
		&e.ExpiryDate, &e.SentAt, &e.ViewedAt, &e.ApprovedAt, &e.DeclinedAt, &e.Currency, &e.Subtotal,
		&e.TaxTotal, &e.DiscountTotal, &e.TotalAmount, &e.ClientNotes, &e.InternalNotes, &e.TermsConditions,
		&e.PublicToken, &e.ConvertedInvoiceID, &e.CreatedAt, &e.UpdatedAt,
		&e.ClientName, &e.ClientEmail,
	)
	return e, err
}

func (r *estimateRepositoryImpl) getOne(ctx context.Context, query string, args ...any) (estimate.Estimate, error) {
	q := GetQuerier(ctx, r.db)

	e, err := scanEstimate(q.QueryRow(ctx, query, args...))
	if err != nil {
		return estimate.Estimate{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, estimate_id, description, quantity, unit_price, tax_rate, subtotal, total, sort_order
		FROM estimate_items
		WHERE estimate_id = $1
		ORDER BY sort_order, id`, e.ID)
	if err != nil {
		return estimate.Estimate{}, fmt.Errorf("failed to load estimate items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it estimate.Item
		if err := rows.Scan(&it.ID, &it.EstimateID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.Subtotal, &it.Total, &it.SortOrder); err != nil {
			return estimate.Estimate{}, fmt.Errorf("failed to scan estimate item: %w", err)
		}
		e.Items = append(e.Items, it)
	}
	return e, rows.Err()
}

// Create implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) Create(ctx context.Context, e estimate.Estimate) (estimate.Estimate, error) {
	q := GetQuerier(ctx, r.db)

	e.ID = newID(e.ID)
	query := `
		INSERT INTO estimates (
			id, workspace_id, client_id, created_by, estimate_number, status, issue_date, expiry_date, currency,
			subtotal, tax_total, discount_total, total_amount, client_notes, internal_notes, terms_conditions, public_token
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := q.Exec(ctx, query,
		e.ID, e.WorkspaceID, e.ClientID, e.CreatedBy, e.EstimateNumber, e.Status, e.IssueDate, e.ExpiryDate, e.Currency,
		e.Subtotal, e.TaxTotal, e.DiscountTotal, e.TotalAmount, e.ClientNotes, e.InternalNotes, e.TermsConditions, e.PublicToken,
	)
	if err != nil {
		return estimate.Estimate{}, fmt.Errorf("failed to insert estimate: %w", err)
	}
	if err := r.ReplaceItems(ctx, e.ID, e.Items); err != nil {
		return estimate.Estimate{}, err
	}
	return r.getOne(ctx, estimateSelect+` WHERE e.id = $1`, e.ID)
}

// GetByID implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (estimate.Estimate, error) {
	return r.getOne(ctx, estimateSelect+` WHERE e.id = $1 AND e.workspace_id = $2`, id, workspaceID)
}

// GetByIDForUpdate implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) GetByIDForUpdate(ctx context.Context, workspaceID, id string) (estimate.Estimate, error) {
	return r.getOne(ctx, estimateSelect+` WHERE e.id = $1 AND e.workspace_id = $2 FOR UPDATE OF e`, id, workspaceID)
}

// GetByPublicToken implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) GetByPublicToken(ctx context.Context, token string) (estimate.Estimate, error) {
	return r.getOne(ctx, estimateSelect+` WHERE e.public_token = $1`, token)
}

// List implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) List(ctx context.Context, filter estimate.EstimateFilter) ([]estimate.Estimate, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("e.workspace_id = ?", filter.WorkspaceID)
	if filter.Status != nil {
		where.add("e.status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		where.add("e.client_id = ?", *filter.ClientID)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		where.add("(e.estimate_number ILIKE ? OR c.name ILIKE ?)", search, search)
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM estimates e JOIN clients c ON c.id = e.client_id WHERE " + where.String()
	if err := q.QueryRow(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count estimates: %w", err)
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY e.issue_date DESC, e.created_at DESC
		LIMIT $%d OFFSET $%d`, estimateSelect, where.String(), where.next(), where.next()+1)

	rows, err := q.Query(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	var estimates []estimate.Estimate
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, e)
	}
	return estimates, total, rows.Err()
}

// Update implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) Update(ctx context.Context, e estimate.Estimate) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE estimates
		SET status = $1, issue_date = $2, expiry_date = $3, sent_at = $4, viewed_at = $5, accepted_at = $6,
			declined_at = $7, currency = $8, subtotal = $9, tax_total = $10, discount_total = $11,
			total_amount = $12, client_notes = $13, internal_notes = $14, terms_conditions = $15,
			converted_invoice_id = $16, updated_at = NOW()
		WHERE id = $17
	`
	return execOne(ctx, q, query,
		e.Status, e.IssueDate, e.ExpiryDate, e.SentAt, e.ViewedAt, e.ApprovedAt,
		e.DeclinedAt, e.Currency, e.Subtotal, e.TaxTotal, e.DiscountTotal,
		e.TotalAmount, e.ClientNotes, e.InternalNotes, e.TermsConditions,
		e.ConvertedInvoiceID, e.ID,
	)
}

// ReplaceItems implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) ReplaceItems(ctx context.Context, estimateID string, items []estimate.Item) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM estimate_items WHERE estimate_id = $1`, estimateID); err != nil {
		return fmt.Errorf("failed to clear estimate items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for idx, it := range items {
		batch.Queue(`
			INSERT INTO estimate_items (id, estimate_id, description, quantity, unit_price, tax_rate, subtotal, total, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			newID(it.ID), estimateID, it.Description, it.Quantity, it.UnitPrice, it.TaxRate, it.Subtotal, it.Total, idx,
		)
	}
	return sendBatch(ctx, q, batch)
}

// Delete implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM estimates WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// ExpireBefore implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) ExpireBefore(ctx context.Context, day time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE estimates
		SET status = 'expired', updated_at = NOW()
		WHERE status IN ('sent', 'viewed') AND expiry_date < $1
	`
	tag, err := q.Exec(ctx, query, day)
	if err != nil {
		return 0, fmt.Errorf("failed to expire estimates: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateActivity implements estimate.EstimateRepository.
func (r *estimateRepositoryImpl) CreateActivity(ctx context.Context, a estimate.Activity) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO estimate_activities (id, estimate_id, user_id, action, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.Exec(ctx, query, newID(a.ID), a.EstimateID, a.UserID, a.Action, a.Details, a.IPAddress)
	return err
}
