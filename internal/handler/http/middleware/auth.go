package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/auth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
)

// AuthRequired accepts only verified access tokens; jwtauth.Verifier must run first
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		if token == nil {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		tokenType, ok := claims["type"].(string)
		if !ok || tokenType != jwt.TokenTypeAccess {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			response.HandleError(w, auth.ErrInvalidToken)
			return
		}

		next.ServeHTTP(w, r)
	})
}
