package workspace

import (
	"context"
	"io"
)

// LogoUpload carries an uploaded logo file
type LogoUpload struct {
	Reader      io.Reader
	FileName    string
	ContentType string
	Size        int64
}

type WorkspaceService interface {
	// Create makes a workspace owned by ownerID, adds the owner membership and seeds defaults
	Create(ctx context.Context, ownerID, name string) (Workspace, error)
	Get(ctx context.Context, workspaceID string) (WorkspaceResponse, error)
	Update(ctx context.Context, workspaceID string, req UpdateWorkspaceRequest) (WorkspaceResponse, error)
	UploadLogo(ctx context.Context, workspaceID string, upload LogoUpload) (WorkspaceResponse, error)
	ListMine(ctx context.Context, userID string) ([]WorkspaceResponse, error)

	// ==================== Members ====================

	GetMembership(ctx context.Context, workspaceID, userID string) (Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]MemberResponse, error)
	UpdateMemberRole(ctx context.Context, workspaceID, targetUserID string, req UpdateMemberRoleRequest) error
	RemoveMember(ctx context.Context, workspaceID, actorUserID, targetUserID string) error
	Leave(ctx context.Context, workspaceID, userID string) error
}
