package middleware

import (
	"context"

	"github.com/go-chi/jwtauth/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
)

type ctxKey int

const memberKey ctxKey = iota

func claim(ctx context.Context, key string) string {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return ""
	}
	v, _ := claims[key].(string)
	return v
}

// UserID returns the user_id claim of the access token
func UserID(ctx context.Context) string {
	return claim(ctx, "user_id")
}

// Email returns the email claim of the access token
func Email(ctx context.Context) string {
	return claim(ctx, "email")
}

// WorkspaceID returns the workspace the access token is bound to
func WorkspaceID(ctx context.Context) string {
	return claim(ctx, "workspace_id")
}

// WithMember stores the verified membership of the request
func WithMember(ctx context.Context, m workspace.Member) context.Context {
	return context.WithValue(ctx, memberKey, m)
}

// MemberFromContext returns the membership verified by RequireMembership
func MemberFromContext(ctx context.Context) (workspace.Member, bool) {
	m, ok := ctx.Value(memberKey).(workspace.Member)
	return m, ok
}

// Role prefers the verified membership role over the token claim
func Role(ctx context.Context) workspace.Role {
	if m, ok := MemberFromContext(ctx); ok {
		return m.Role
	}
	return workspace.Role(claim(ctx, "role"))
}
