package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invitation"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

type invitationRepositoryImpl struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository instance
func NewInvitationRepository(db *database.DB) invitation.InvitationRepository {
	return &invitationRepositoryImpl{db: db}
}

const invitationColumns = `i.id, i.workspace_id, i.invited_by, i.email, i.role, i.token, i.status,
		i.expires_at, i.accepted_at, i.revoked_at, i.created_at, i.updated_at`

const invitationDetailSelect = `
	SELECT ` + invitationColumns + `,
		   w.name AS workspace_name, w.logo_key AS workspace_logo,
		   TRIM(COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username)) AS inviter_name
	FROM invitations i
	JOIN workspaces w ON w.id = i.workspace_id
	JOIN users u ON u.id = i.invited_by
`

func scanInvitation(row interface{ Scan(dest ...any) error }, extra ...any) (invitation.Invitation, error) {
	var inv invitation.Invitation
	dest := []any{
		&inv.ID, &inv.WorkspaceID, &inv.InvitedBy, &inv.Email, &inv.Role, &inv.Token, &inv.Status,
		&inv.ExpiresAt, &inv.AcceptedAt, &inv.RevokedAt, &inv.CreatedAt, &inv.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return inv, err
}

func scanInvitationDetails(row interface{ Scan(dest ...any) error }) (invitation.InvitationWithDetails, error) {
	var d invitation.InvitationWithDetails
	inv, err := scanInvitation(row, &d.WorkspaceName, &d.WorkspaceLogo, &d.InviterName)
	d.Invitation = inv
	return d, err
}

func (r *invitationRepositoryImpl) listDetails(ctx context.Context, query string, args ...any) ([]invitation.InvitationWithDetails, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []invitation.InvitationWithDetails
	for rows.Next() {
		d, err := scanInvitationDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, d)
	}
	return invitations, rows.Err()
}

// Create implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) Create(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO invitations AS i (id, workspace_id, invited_by, email, role, token, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + invitationColumns

	return scanInvitation(q.QueryRow(ctx, query,
		newID(inv.ID), inv.WorkspaceID, inv.InvitedBy, inv.Email, inv.Role, inv.Token, inv.Status, inv.ExpiresAt,
	))
}

// GetByID implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (invitation.Invitation, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + invitationColumns + ` FROM invitations i WHERE i.id = $1 AND i.workspace_id = $2`
	return scanInvitation(q.QueryRow(ctx, query, id, workspaceID))
}

// GetByTokenWithDetails implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) GetByTokenWithDetails(ctx context.Context, token string) (invitation.InvitationWithDetails, error) {
	q := GetQuerier(ctx, r.db)
	return scanInvitationDetails(q.QueryRow(ctx, invitationDetailSelect+` WHERE i.token = $1`, token))
}

// ListByWorkspace implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) ListByWorkspace(ctx context.Context, workspaceID string, status *invitation.Status) ([]invitation.InvitationWithDetails, error) {
	if status != nil {
		return r.listDetails(ctx, invitationDetailSelect+`
			WHERE i.workspace_id = $1 AND i.status = $2
			ORDER BY i.created_at DESC`, workspaceID, *status)
	}
	return r.listDetails(ctx, invitationDetailSelect+`
		WHERE i.workspace_id = $1
		ORDER BY i.created_at DESC`, workspaceID)
}

// ListPendingByEmail implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) ListPendingByEmail(ctx context.Context, email string) ([]invitation.InvitationWithDetails, error) {
	return r.listDetails(ctx, invitationDetailSelect+`
		WHERE i.email = LOWER($1) AND i.status = 'pending' AND i.expires_at > NOW()
		ORDER BY i.created_at DESC`, email)
}

// RevokePendingByEmail implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) RevokePendingByEmail(ctx context.Context, workspaceID, email string, at time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'revoked', revoked_at = $1, updated_at = NOW()
		WHERE workspace_id = $2 AND email = LOWER($3) AND status = 'pending'
	`
	tag, err := q.Exec(ctx, query, at, workspaceID, email)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke pending invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkAccepted implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'accepted', accepted_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`
	return execOne(ctx, q, query, at, id)
}

// MarkRevoked implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'revoked', revoked_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`
	return execOne(ctx, q, query, at, id)
}

// MarkExpired implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkExpired(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `UPDATE invitations SET status = 'expired', updated_at = NOW() WHERE id = $1 AND status = 'pending'`, id)
	return err
}

// ExpirePending implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE invitations SET status = 'expired', updated_at = NOW() WHERE status = 'pending' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateToken implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) UpdateToken(ctx context.Context, id, newToken string, expiresAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET token = $1, expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'pending'
	`
	return execOne(ctx, q, query, newToken, expiresAt, id)
}
