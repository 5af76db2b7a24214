package invitation

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

const DefaultExpiry = 7 * 24 * time.Hour

// CreateRequest invites an email address into the current workspace
type CreateRequest struct {
	Email string         `json:"email" validate:"required,email,max=255"`
	Role  workspace.Role `json:"role" validate:"required,oneof=admin member"`
}

func (r *CreateRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Role == "" {
		r.Role = workspace.RoleMember
	}
	var errs validator.ValidationErrors
	if r.Role == workspace.RoleOwner {
		errs.Add("role", "owner role cannot be invited")
		return errs
	}
	return validator.Struct(r).OrNil()
}

// InvitationResponse is the workspace admin view of an invitation
type InvitationResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Role        workspace.Role `json:"role"`
	Status      Status         `json:"status"`
	InviterName string         `json:"inviter_name,omitempty"`
	ExpiresAt   string         `json:"expires_at"`
	AcceptedAt  *string        `json:"accepted_at,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

func (i *Invitation) ToResponse(inviterName string) InvitationResponse {
	resp := InvitationResponse{
		ID:          i.ID,
		Email:       i.Email,
		Role:        i.Role,
		Status:      i.Status,
		InviterName: inviterName,
		ExpiresAt:   i.ExpiresAt.Format(time.RFC3339),
		CreatedAt:   i.CreatedAt.Format(time.RFC3339),
	}
	if i.AcceptedAt != nil {
		s := i.AcceptedAt.Format(time.RFC3339)
		resp.AcceptedAt = &s
	}
	return resp
}

// InvitationDetailResponse - GET /public/invitations/{token}
type InvitationDetailResponse struct {
	Token         string         `json:"token"`
	Email         string         `json:"email"`
	WorkspaceName string         `json:"workspace_name"`
	WorkspaceLogo *string        `json:"workspace_logo,omitempty"`
	Role          workspace.Role `json:"role"`
	InviterName   string         `json:"inviter_name"`
	Status        Status         `json:"status"`
	ExpiresAt     string         `json:"expires_at"`
	IsExpired     bool           `json:"is_expired"`
}

func (d *InvitationWithDetails) ToDetailResponse(now time.Time) InvitationDetailResponse {
	return InvitationDetailResponse{
		Token:         d.Token,
		Email:         d.Email,
		WorkspaceName: d.WorkspaceName,
		WorkspaceLogo: d.WorkspaceLogo,
		Role:          d.Role,
		InviterName:   d.InviterName,
		Status:        d.Status,
		ExpiresAt:     d.ExpiresAt.Format(time.RFC3339),
		IsExpired:     d.IsExpired(now),
	}
}

// AcceptResponse for invitation acceptance result
type AcceptResponse struct {
	Message       string         `json:"message"`
	WorkspaceID   string         `json:"workspace_id"`
	WorkspaceName string         `json:"workspace_name"`
	Role          workspace.Role `json:"role"`
}
