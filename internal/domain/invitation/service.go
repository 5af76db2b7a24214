package invitation

import (
	"context"
	"time"
)

// InvitationService defines the interface for invitation business logic
type InvitationService interface {
	// Create revokes older pending invitations for the email, stores a new one and emails the link
	Create(ctx context.Context, workspaceID, inviterID string, req CreateRequest) (InvitationResponse, error)

	List(ctx context.Context, workspaceID string, status *Status) ([]InvitationResponse, error)

	Revoke(ctx context.Context, workspaceID, id string) error

	// Resend issues a fresh token and expiry and emails it again
	Resend(ctx context.Context, workspaceID, id string) (InvitationResponse, error)

	// GetByToken retrieves invitation details by token (public endpoint)
	GetByToken(ctx context.Context, token string) (InvitationDetailResponse, error)

	ListMyInvitations(ctx context.Context, email string) ([]InvitationDetailResponse, error)

	// Accept adds the authenticated user to the workspace
	Accept(ctx context.Context, token, userID, userEmail string) (AcceptResponse, error)

	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}
