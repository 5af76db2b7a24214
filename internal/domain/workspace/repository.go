package workspace

import "context"

type WorkspaceRepository interface {
	Create(ctx context.Context, ws Workspace) (Workspace, error)
	GetByID(ctx context.Context, id string) (Workspace, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, ws Workspace) (Workspace, error)
	UpdateLogo(ctx context.Context, id string, logoKey *string) error

	// ==================== Members ====================

	AddMember(ctx context.Context, member Member) (Member, error)
	GetMember(ctx context.Context, workspaceID, userID string) (Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
	ListForUser(ctx context.Context, userID string) ([]Membership, error)
	UpdateMemberRole(ctx context.Context, workspaceID, userID string, role Role) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error

	// NextSequence atomically increments and returns the document counter for (workspace, kind, year)
	NextSequence(ctx context.Context, workspaceID, kind string, year int) (int, error)
}
