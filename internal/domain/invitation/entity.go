package invitation

import (
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
)

// Status represents the status of an invitation
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Invitation asks an email address to join a workspace with a role
type Invitation struct {
	ID          string
	WorkspaceID string
	InvitedBy   string
	Email       string
	Role        workspace.Role
	Token       string
	Status      Status
	ExpiresAt   time.Time
	AcceptedAt  *time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InvitationWithDetails contains invitation data with joined workspace and inviter names
type InvitationWithDetails struct {
	Invitation
	WorkspaceName string
	WorkspaceLogo *string
	InviterName   string
}

// IsExpired checks if the invitation has expired at now
func (i *Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// CanBeAccepted checks if the invitation can be accepted at now
func (i *Invitation) CanBeAccepted(now time.Time) bool {
	return i.Status == StatusPending && !i.IsExpired(now)
}
