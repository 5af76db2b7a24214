package postgresql

import (
	"context"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

const workspaceColumns = `id, name, slug, owner_id, company_name, business_email, business_phone, business_address,
		business_country, logo_key, primary_color, invoice_prefix, default_currency, vat_rate, tax_id_number,
		payment_provider, created_at, updated_at`

type workspaceRepositoryImpl struct {
	db *database.DB
}

func NewWorkspaceRepository(db *database.DB) workspace.WorkspaceRepository {
	return &workspaceRepositoryImpl{db: db}
}

func scanWorkspace(row interface{ Scan(dest ...any) error }, extra ...any) (workspace.Workspace, error) {
	var w workspace.Workspace
	dest := []any{
		&w.ID, &w.Name, &w.Slug, &w.OwnerID, &w.CompanyName, &w.BusinessEmail, &w.BusinessPhone,
		&w.BusinessAddress, &w.BusinessCountry, &w.LogoKey, &w.PrimaryColor, &w.InvoicePrefix,
		&w.DefaultCurrency, &w.VATRate, &w.TaxIDNumber, &w.PaymentProvider, &w.CreatedAt, &w.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return w, err
}

// Create implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) Create(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO workspaces (id, name, slug, owner_id, company_name, business_email, default_currency, invoice_prefix)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, ''), 'USD'), COALESCE(NULLIF($8, ''), 'INV'))
		RETURNING ` + workspaceColumns

	return scanWorkspace(q.QueryRow(ctx, query,
		newID(ws.ID), ws.Name, ws.Slug, ws.OwnerID, ws.CompanyName, ws.BusinessEmail, ws.DefaultCurrency, ws.InvoicePrefix,
	))
}

// GetByID implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) GetByID(ctx context.Context, id string) (workspace.Workspace, error) {
	q := GetQuerier(ctx, r.db)
	return scanWorkspace(q.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id))
}

// SlugExists implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) SlugExists(ctx context.Context, slug string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workspaces WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

// Update implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) Update(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE workspaces
		SET name = $1, company_name = $2, business_email = $3, business_phone = $4, business_address = $5,
			business_country = $6, primary_color = $7, invoice_prefix = $8, default_currency = $9,
			vat_rate = $10, tax_id_number = $11, payment_provider = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING ` + workspaceColumns

	return scanWorkspace(q.QueryRow(ctx, query,
		ws.Name, ws.CompanyName, ws.BusinessEmail, ws.BusinessPhone, ws.BusinessAddress,
		ws.BusinessCountry, ws.PrimaryColor, ws.InvoicePrefix, ws.DefaultCurrency,
		ws.VATRate, ws.TaxIDNumber, ws.PaymentProvider, ws.ID,
	))
}

// UpdateLogo implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) UpdateLogo(ctx context.Context, id string, logoKey *string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `UPDATE workspaces SET logo_key = $1, updated_at = NOW() WHERE id = $2`, logoKey, id)
}

// ==================== Members ====================

// AddMember implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) AddMember(ctx context.Context, member workspace.Member) (workspace.Member, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO workspace_members (id, workspace_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, workspace_id, user_id, role, created_at
	`
	var m workspace.Member
	err := q.QueryRow(ctx, query, newID(member.ID), member.WorkspaceID, member.UserID, member.Role).Scan(
		&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt,
	)
	return m, err
}

const memberSelect = `
	SELECT m.id, m.workspace_id, m.user_id, m.role, m.created_at,
		   u.email, u.username, u.first_name, u.last_name
	FROM workspace_members m
	JOIN users u ON u.id = m.user_id
`

func scanMember(row interface{ Scan(dest ...any) error }) (workspace.Member, error) {
	var m workspace.Member
	err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt, &m.Email, &m.Username, &m.FirstName, &m.LastName)
	return m, err
}

// GetMember implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) GetMember(ctx context.Context, workspaceID, userID string) (workspace.Member, error) {
	q := GetQuerier(ctx, r.db)
	return scanMember(q.QueryRow(ctx, memberSelect+` WHERE m.workspace_id = $1 AND m.user_id = $2`, workspaceID, userID))
}

// ListMembers implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) ListMembers(ctx context.Context, workspaceID string) ([]workspace.Member, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, memberSelect+`
		WHERE m.workspace_id = $1
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.created_at`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []workspace.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListForUser implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) ListForUser(ctx context.Context, userID string) ([]workspace.Membership, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT w.id, w.name, w.slug, w.owner_id, w.company_name, w.business_email, w.business_phone,
			   w.business_address, w.business_country, w.logo_key, w.primary_color, w.invoice_prefix,
			   w.default_currency, w.vat_rate, w.tax_id_number, w.payment_provider, w.created_at, w.updated_at,
			   m.role
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = $1
		ORDER BY m.created_at
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []workspace.Membership
	for rows.Next() {
		var role workspace.Role
		ws, err := scanWorkspace(rows, &role)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, workspace.Membership{Workspace: ws, Role: role})
	}
	return memberships, rows.Err()
}

// UpdateMemberRole implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) UpdateMemberRole(ctx context.Context, workspaceID, userID string, role workspace.Role) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `UPDATE workspace_members SET role = $1 WHERE workspace_id = $2 AND user_id = $3`, role, workspaceID, userID)
}

// RemoveMember implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
}

// NextSequence implements workspace.WorkspaceRepository.
func (r *workspaceRepositoryImpl) NextSequence(ctx context.Context, workspaceID, kind string, year int) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO document_sequences (workspace_id, kind, year, last_value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (workspace_id, kind, year)
		DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`
	var next int
	err := q.QueryRow(ctx, query, workspaceID, kind, year).Scan(&next)
	return next, err
}
