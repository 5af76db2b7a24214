package postgresql

import (
	"context"
	"fmt"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

const clientColumns = `id, workspace_id, name, email, phone, tax_id, billing_address, billing_city, billing_state,
		billing_country, billing_zip, shipping_address, currency, discount_rate, notes, tags, created_at, updated_at`

type clientRepositoryImpl struct {
	db *database.DB
}

func NewClientRepository(db *database.DB) client.ClientRepository {
	return &clientRepositoryImpl{db: db}
}

func scanClient(row interface{ Scan(dest ...any) error }) (client.Client, error) {
	var c client.Client
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &c.Email, &c.Phone, &c.TaxID, &c.BillingAddress, &c.BillingCity,
		&c.BillingState, &c.BillingCountry, &c.BillingZip, &c.ShippingAddress, &c.Currency, &c.DiscountRate,
		&c.Notes, &c.Tags, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// Create implements client.ClientRepository.
func (r *clientRepositoryImpl) Create(ctx context.Context, c client.Client) (client.Client, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO clients (
			id, workspace_id, name, email, phone, tax_id, billing_address, billing_city, billing_state,
			billing_country, billing_zip, shipping_address, currency, discount_rate, notes, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + clientColumns

	return scanClient(q.QueryRow(ctx, query,
		newID(c.ID), c.WorkspaceID, c.Name, c.Email, c.Phone, c.TaxID, c.BillingAddress, c.BillingCity, c.BillingState,
		c.BillingCountry, c.BillingZip, c.ShippingAddress, c.Currency, c.DiscountRate, c.Notes, orEmptySlice(c.Tags),
	))
}

// GetByID implements client.ClientRepository.
func (r *clientRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (client.Client, error) {
	q := GetQuerier(ctx, r.db)
	return scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
}

// List implements client.ClientRepository.
func (r *clientRepositoryImpl) List(ctx context.Context, filter client.ClientFilter) ([]client.Client, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("workspace_id = ?", filter.WorkspaceID)
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		where.add("(name ILIKE ? OR email ILIKE ? OR tax_id ILIKE ?)", search, search, search)
	}
	if filter.Tag != "" {
		where.add("? = ANY(tags)", filter.Tag)
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM clients WHERE "+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM clients
		WHERE %s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d
	`, clientColumns, where.String(), where.next(), where.next()+1)

	rows, err := q.Query(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []client.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

// Update implements client.ClientRepository.
func (r *clientRepositoryImpl) Update(ctx context.Context, c client.Client) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE clients
		SET name = $1, email = $2, phone = $3, tax_id = $4, billing_address = $5, billing_city = $6,
			billing_state = $7, billing_country = $8, billing_zip = $9, shipping_address = $10,
			currency = $11, discount_rate = $12, notes = $13, tags = $14, updated_at = NOW()
		WHERE id = $15 AND workspace_id = $16
	`
	return execOne(ctx, q, query,
		c.Name, c.Email, c.Phone, c.TaxID, c.BillingAddress, c.BillingCity,
		c.BillingState, c.BillingCountry, c.BillingZip, c.ShippingAddress,
		c.Currency, c.DiscountRate, c.Notes, orEmptySlice(c.Tags), c.ID, c.WorkspaceID,
	)
}

// Delete implements client.ClientRepository.
func (r *clientRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM clients WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// AddNote implements client.ClientRepository.
func (r *clientRepositoryImpl) AddNote(ctx context.Context, note client.Note) (client.Note, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO client_notes (id, client_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, client_id, user_id, content, created_at
	`
	var n client.Note
	err := q.QueryRow(ctx, query, newID(note.ID), note.ClientID, note.UserID, note.Content).Scan(
		&n.ID, &n.ClientID, &n.UserID, &n.Content, &n.CreatedAt,
	)
	return n, err
}

// ListNotes implements client.ClientRepository.
func (r *clientRepositoryImpl) ListNotes(ctx context.Context, clientID string) ([]client.Note, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, client_id, user_id, content, created_at
		FROM client_notes
		WHERE client_id = $1
		ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []client.Note
	for rows.Next() {
		var n client.Note
		if err := rows.Scan(&n.ID, &n.ClientID, &n.UserID, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
