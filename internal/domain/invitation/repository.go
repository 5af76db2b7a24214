package invitation

import (
	"context"
	"time"
)

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	Create(ctx context.Context, inv Invitation) (Invitation, error)

	GetByID(ctx context.Context, workspaceID, id string) (Invitation, error)

	// GetByTokenWithDetails retrieves an invitation by token with the workspace and inviter names
	GetByTokenWithDetails(ctx context.Context, token string) (InvitationWithDetails, error)

	ListByWorkspace(ctx context.Context, workspaceID string, status *Status) ([]InvitationWithDetails, error)

	// ListPendingByEmail lists pending non-expired invitations for an email
	ListPendingByEmail(ctx context.Context, email string) ([]InvitationWithDetails, error)

	// RevokePendingByEmail revokes older pending invitations for the same email in a workspace
	RevokePendingByEmail(ctx context.Context, workspaceID, email string, at time.Time) (int64, error)

	MarkAccepted(ctx context.Context, id string, at time.Time) error
	MarkRevoked(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, id string) error

	// ExpirePending flips every pending invitation whose expiry has passed
	ExpirePending(ctx context.Context, now time.Time) (int64, error)

	// UpdateToken updates the token and expiry date (for resend)
	UpdateToken(ctx context.Context, id, newToken string, expiresAt time.Time) error
}
