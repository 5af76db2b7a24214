package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/auth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthService struct {
	auth.AuthService
	loginResp    auth.LoginResponse
	loginErr     error
	refreshToken string
	googleState  string
}

func (f *fakeAuthService) Register(_ context.Context, req auth.RegisterRequest) (user.UserResponse, error) {
	if req.Password != req.ConfirmPassword {
		return user.UserResponse{}, auth.ErrInvalidCredentials
	}
	return user.UserResponse{ID: "user-1", Email: req.Email}, nil
}

func (f *fakeAuthService) Login(_ context.Context, _ auth.LoginRequest, _ auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAuthService) RefreshToken(_ context.Context, req auth.RefreshTokenRequest) (auth.TokenResponse, error) {
	f.refreshToken = req.RefreshToken
	return auth.TokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh", RefreshTokenExpiresIn: 2000000000}, nil
}

func (f *fakeAuthService) LoginWithGoogle(_ context.Context, _ auth.GoogleCallbackRequest, expectedState string, _ auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	f.googleState = expectedState
	return f.loginResp, f.loginErr
}

func createAuthHandler(t *testing.T, svc auth.AuthService) AuthHandler {
	t.Helper()
	jwtSvc, err := jwt.NewJWTService("test-secret-key-for-jwt", "1h", "24h", false)
	require.NoError(t, err)
	return NewAuthHandler(jwtSvc, svc, "http://localhost:3000", false)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register_Success(t *testing.T) {
	handler := createAuthHandler(t, &fakeAuthService{})

	body, _ := json.Marshal(auth.RegisterRequest{
		Email:           "owner@example.com",
		Password:        "SecurePass123!",
		ConfirmPassword: "SecurePass123!",
	})
	w := httptest.NewRecorder()
	handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp["success"].(bool))
	assert.Equal(t, "owner@example.com", resp["data"].(map[string]any)["email"])
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	handler := createAuthHandler(t, &fakeAuthService{})

	w := httptest.NewRecorder()
	handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte("invalid json"))))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &fakeAuthService{loginResp: auth.LoginResponse{
		Tokens: &auth.TokenResponse{AccessToken: "access", RefreshToken: "refresh", RefreshTokenExpiresIn: 2000000000},
	}}
	handler := createAuthHandler(t, svc)

	body, _ := json.Marshal(auth.LoginRequest{Identifier: "owner@example.com", Password: "password123"})
	w := httptest.NewRecorder()
	handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	tokens := resp["data"].(map[string]any)["tokens"].(map[string]any)
	assert.Equal(t, "access", tokens["access_token"])

	cookie := findCookie(w, "refresh_token")
	require.NotNil(t, cookie)
	assert.Equal(t, "refresh", cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestAuthHandler_Login_MFARequiredSetsNoCookie(t *testing.T) {
	svc := &fakeAuthService{loginResp: auth.LoginResponse{MFARequired: true, MFAToken: "challenge"}}
	handler := createAuthHandler(t, svc)

	body, _ := json.Marshal(auth.LoginRequest{Identifier: "owner@example.com", Password: "password123"})
	w := httptest.NewRecorder()
	handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, findCookie(w, "refresh_token"))
	resp := decodeResponse(t, w)
	assert.Equal(t, "challenge", resp["data"].(map[string]any)["mfa_token"])
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	handler := createAuthHandler(t, &fakeAuthService{loginErr: auth.ErrInvalidCredentials})

	body, _ := json.Marshal(auth.LoginRequest{Identifier: "owner@example.com", Password: "wrong"})
	w := httptest.NewRecorder()
	handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp["success"].(bool))
}

func TestAuthHandler_Login_LockedAccount(t *testing.T) {
	handler := createAuthHandler(t, &fakeAuthService{loginErr: auth.ErrAccountLocked})

	body, _ := json.Marshal(auth.LoginRequest{Identifier: "owner@example.com", Password: "wrong"})
	w := httptest.NewRecorder()
	handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandler_RefreshToken_PrefersCookie(t *testing.T) {
	svc := &fakeAuthService{}
	handler := createAuthHandler(t, svc)

	body, _ := json.Marshal(auth.RefreshTokenRequest{RefreshToken: "from-body"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "from-cookie"})
	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-cookie", svc.refreshToken)
	cookie := findCookie(w, "refresh_token")
	require.NotNil(t, cookie)
	assert.Equal(t, "new-refresh", cookie.Value)
}

func TestAuthHandler_RefreshToken_FromBody(t *testing.T) {
	svc := &fakeAuthService{}
	handler := createAuthHandler(t, svc)

	body, _ := json.Marshal(auth.RefreshTokenRequest{RefreshToken: "from-body"})
	w := httptest.NewRecorder()
	handler.RefreshToken(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-body", svc.refreshToken)
}

func TestAuthHandler_OAuthCallback_MissingStateCookie(t *testing.T) {
	handler := createAuthHandler(t, &fakeAuthService{})

	w := httptest.NewRecorder()
	handler.OAuthCallbackGoogle(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/callback/google?code=abc&state=xyz", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "state_cookie_not_found", loc.Query().Get("error"))
}

func TestAuthHandler_OAuthCallback_MFARedirect(t *testing.T) {
	svc := &fakeAuthService{loginResp: auth.LoginResponse{MFARequired: true, MFAToken: "challenge"}}
	handler := createAuthHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/callback/google?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	w := httptest.NewRecorder()
	handler.OAuthCallbackGoogle(w, req)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "xyz", svc.googleState)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback/google", loc.Path)
	assert.Equal(t, "challenge", loc.Query().Get("mfa_token"))
	assert.Nil(t, findCookie(w, "refresh_token"))
}

func TestAuthHandler_ForgotPassword_AlwaysSucceeds(t *testing.T) {
	handler := createAuthHandler(t, &forgotService{})

	body, _ := json.Marshal(auth.EmailRequest{Email: "nobody@example.com"})
	w := httptest.NewRecorder()
	handler.ForgotPassword(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
}

type forgotService struct {
	auth.AuthService
}

func (forgotService) ForgotPassword(context.Context, auth.EmailRequest) error { return nil }
