package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/cache"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func withRole(role workspace.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(WithMember(req.Context(), workspace.Member{WorkspaceID: "ws-1", UserID: "user-1", Role: role}))
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(workspace.PermissionInvoiceVoid)(okHandler)

	tests := []struct {
		role workspace.Role
		want int
	}{
		{workspace.RoleOwner, http.StatusNoContent},
		{workspace.RoleAdmin, http.StatusNoContent},
		{workspace.RoleMember, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, withRole(tt.role))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireOwner(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireOwner(okHandler).ServeHTTP(rec, withRole(workspace.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	RequireOwner(okHandler).ServeHTTP(rec, withRole(workspace.RoleOwner))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(cache.NewMemoryStore(), "test", 1, 30*time.Second)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.10:4000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(brokenLimiter{}, "test", 1, time.Minute)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireMembership_WithoutToken(t *testing.T) {
	m := NewWorkspaceMiddleware(nil)
	rec := httptest.NewRecorder()
	m.RequireMembership(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired_WithoutToken(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthRequired(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
