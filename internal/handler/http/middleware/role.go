package middleware

import (
	"fmt"
	"net/http"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
)

// RequireOwner requires the owner role
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Role(r.Context()) != workspace.RoleOwner {
			response.Forbidden(w, "Owner access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequirePermission checks if the member's role has a specific permission
func RequirePermission(permission workspace.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := Role(r.Context())
			if role == "" {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s'", permission))
				return
			}

			if !workspace.HasPermission(role, permission) {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s', but user role is '%s'", permission, role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
