package middleware

import (
	"context"
	"net/http"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

// MembershipSource looks up the membership of a user in a workspace
type MembershipSource interface {
	GetMembership(ctx context.Context, workspaceID, userID string) (workspace.Member, error)
}

// WorkspaceMiddleware verifies the workspace claim against the database
type WorkspaceMiddleware struct {
	members MembershipSource
}

func NewWorkspaceMiddleware(members MembershipSource) *WorkspaceMiddleware {
	return &WorkspaceMiddleware{members: members}
}

// RequireMembership checks the token's workspace_id claim and then the database, so a
// removed member or a changed role takes effect before the access token expires.
func (m *WorkspaceMiddleware) RequireMembership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := UserID(r.Context())
		workspaceID := WorkspaceID(r.Context())
		if userID == "" {
			response.Unauthorized(w, "unauthorized")
			return
		}
		if workspaceID == "" {
			response.HandleError(w, workspace.ErrNotAMember)
			return
		}

		member, err := m.members.GetMembership(r.Context(), workspaceID, userID)
		if err != nil {
			response.HandleError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), member)))
	})
}
