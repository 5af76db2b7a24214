package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/auth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
)

const (
	stateCookie        = "oauth_state"
	refreshTokenCookie = "refresh_token"
	googleCallbackPath = "/api/v1/auth/oauth/callback/google"
)

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	VerifyEmail(w http.ResponseWriter, r *http.Request)
	ResendVerification(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	LoginMFA(w http.ResponseWriter, r *http.Request)
	LoginWithGoogle(w http.ResponseWriter, r *http.Request)
	OAuthCallbackGoogle(w http.ResponseWriter, r *http.Request)
	RefreshToken(w http.ResponseWriter, r *http.Request)
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)

	// Authenticated
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	ChangePassword(w http.ResponseWriter, r *http.Request)
	SwitchWorkspace(w http.ResponseWriter, r *http.Request)
	SecurityEvents(w http.ResponseWriter, r *http.Request)
}

type AuthHandlerImpl struct {
	jwtService    jwt.Service
	authService   auth.AuthService
	frontendURL   string
	secureCookies bool
}

func NewAuthHandler(jwtService jwt.Service, authService auth.AuthService, frontendURL string, secureCookies bool) AuthHandler {
	return &AuthHandlerImpl{
		jwtService:    jwtService,
		authService:   authService,
		frontendURL:   frontendURL,
		secureCookies: secureCookies,
	}
}

// setSession writes the refresh token cookie of a completed login
func (a *AuthHandlerImpl) setSession(w http.ResponseWriter, resp auth.LoginResponse) {
	if resp.Tokens == nil {
		return
	}
	http.SetCookie(w, a.jwtService.RefreshTokenCookie(resp.Tokens.RefreshToken, resp.Tokens.RefreshTokenExpiresIn))
}

func (a *AuthHandlerImpl) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshRequest prefers the refresh token cookie and falls back to the JSON body
func refreshRequest(w http.ResponseWriter, r *http.Request, op string) (auth.RefreshTokenRequest, bool) {
	var req auth.RefreshTokenRequest
	if c, err := r.Cookie(refreshTokenCookie); err == nil && c.Value != "" {
		req.RefreshToken = c.Value
		return req, true
	}
	if !decodeJSON(w, r, &req, op) {
		return req, false
	}
	return req, true
}

// Register implements AuthHandler.
func (a *AuthHandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req, "Register") {
		return
	}

	created, err := a.authService.Register(r.Context(), req)
	if err != nil {
		slog.Error("Register service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("User registered successfully", "user_id", created.ID)
	response.Created(w, "Account created, check your email to verify it", created)
}

// VerifyEmail implements AuthHandler.
func (a *AuthHandlerImpl) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyEmailRequest
	if !decodeJSON(w, r, &req, "VerifyEmail") {
		return
	}

	if err := a.authService.VerifyEmail(r.Context(), req); err != nil {
		slog.Error("VerifyEmail service error", "error", err)
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Email has been verified successfully", nil)
}

// ResendVerification implements AuthHandler.
func (a *AuthHandlerImpl) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req auth.EmailRequest
	if !decodeJSON(w, r, &req, "ResendVerification") {
		return
	}

	if err := a.authService.ResendVerification(r.Context(), req); err != nil {
		slog.Error("ResendVerification service error", "error", err)
		response.HandleError(w, err)
		return
	}

	// Same answer for known and unknown emails
	response.SuccessWithMessage(w, "If the account exists, a verification email has been sent", nil)
}

// Login implements AuthHandler.
func (a *AuthHandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req, "Login") {
		return
	}

	resp, err := a.authService.Login(r.Context(), req, session(r))
	if err != nil {
		slog.Error("Login service error", "error", err)
		response.HandleError(w, err)
		return
	}

	if resp.MFARequired {
		response.SuccessWithMessage(w, "Verification code required", resp)
		return
	}
	a.setSession(w, resp)
	response.SuccessWithMessage(w, "User logged in successfully", resp)
}

// LoginMFA implements AuthHandler.
func (a *AuthHandlerImpl) LoginMFA(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginMFARequest
	if !decodeJSON(w, r, &req, "LoginMFA") {
		return
	}

	resp, err := a.authService.LoginMFA(r.Context(), req, session(r))
	if err != nil {
		slog.Error("LoginMFA service error", "error", err)
		response.HandleError(w, err)
		return
	}

	a.setSession(w, resp)
	response.SuccessWithMessage(w, "User logged in successfully", resp)
}

// LoginWithGoogle implements AuthHandler.
func (a *AuthHandlerImpl) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := a.authService.GoogleAuthURL(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     googleCallbackPath,
		Expires:  time.Now().Add(5 * time.Minute),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallbackGoogle implements AuthHandler.
func (a *AuthHandlerImpl) OAuthCallbackGoogle(w http.ResponseWriter, r *http.Request) {
	redirect := func(values url.Values) {
		http.Redirect(w, r, fmt.Sprintf("%s/auth/callback/google?%s", a.frontendURL, values.Encode()), http.StatusTemporaryRedirect)
	}
	redirectWithError := func(code string) {
		redirect(url.Values{"error": {code}})
	}

	if errorValue := r.URL.Query().Get("error"); errorValue != "" {
		slog.Warn("Google OAuth returned an error", "error", errorValue)
		redirectWithError(errorValue)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		slog.Warn("OAuth state cookie missing")
		redirectWithError("state_cookie_not_found")
		return
	}
	a.clearCookie(w, stateCookie, googleCallbackPath)

	req := auth.GoogleCallbackRequest{
		Code:  r.URL.Query().Get("code"),
		State: r.URL.Query().Get("state"),
	}
	resp, err := a.authService.LoginWithGoogle(r.Context(), req, cookie.Value, session(r))
	if err != nil {
		slog.Error("Failed to login with Google", "error", err)
		redirectWithError("login_failed")
		return
	}

	if resp.MFARequired {
		redirect(url.Values{"mfa_token": {resp.MFAToken}})
		return
	}

	a.setSession(w, resp)
	slog.Info("User logged in successfully via Google OAuth")
	redirect(url.Values{
		"access_token": {resp.Tokens.AccessToken},
		"expires_in":   {fmt.Sprint(resp.Tokens.AccessTokenExpiresIn)},
	})
}

// RefreshToken implements AuthHandler.
func (a *AuthHandlerImpl) RefreshToken(w http.ResponseWriter, r *http.Request) {
	req, ok := refreshRequest(w, r, "RefreshToken")
	if !ok {
		return
	}

	tokens, err := a.authService.RefreshToken(r.Context(), req)
	if err != nil {
		slog.Error("RefreshToken service error", "error", err)
		response.HandleError(w, err)
		return
	}

	http.SetCookie(w, a.jwtService.RefreshTokenCookie(tokens.RefreshToken, tokens.RefreshTokenExpiresIn))
	response.SuccessWithMessage(w, "Token refreshed successfully", tokens)
}

// ForgotPassword implements AuthHandler.
func (a *AuthHandlerImpl) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.EmailRequest
	if !decodeJSON(w, r, &req, "ForgotPassword") {
		return
	}

	if err := a.authService.ForgotPassword(r.Context(), req); err != nil {
		slog.Error("ForgotPassword service error", "error", err)
		response.HandleError(w, err)
		return
	}

	// Success response - always return success to prevent email enumeration
	response.SuccessWithMessage(w, "If the account exists, a password reset link has been sent", nil)
}

// ResetPassword implements AuthHandler.
func (a *AuthHandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decodeJSON(w, r, &req, "ResetPassword") {
		return
	}

	if err := a.authService.ResetPassword(r.Context(), req, session(r)); err != nil {
		slog.Error("ResetPassword service error", "error", err)
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Password has been reset successfully", nil)
}

// Logout implements AuthHandler.
func (a *AuthHandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	req, ok := refreshRequest(w, r, "Logout")
	if !ok {
		return
	}

	if err := a.authService.Logout(r.Context(), middleware.UserID(r.Context()), req, session(r)); err != nil {
		response.HandleError(w, err)
		return
	}

	a.clearCookie(w, refreshTokenCookie, "/api/v1/auth")
	response.SuccessWithMessage(w, "User logged out successfully", nil)
}

// Me implements AuthHandler.
func (a *AuthHandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	me, err := a.authService.Me(r.Context(), middleware.UserID(r.Context()), middleware.WorkspaceID(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, me)
}

// UpdateProfile implements AuthHandler.
func (a *AuthHandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateProfileRequest
	if !decodeJSON(w, r, &req, "UpdateProfile") {
		return
	}

	updated, err := a.authService.UpdateProfile(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Profile updated", updated)
}

// ChangePassword implements AuthHandler.
func (a *AuthHandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ChangePasswordRequest
	if !decodeJSON(w, r, &req, "ChangePassword") {
		return
	}

	if err := a.authService.ChangePassword(r.Context(), middleware.UserID(r.Context()), req, session(r)); err != nil {
		response.HandleError(w, err)
		return
	}

	// Every refresh token was revoked, including the one in this browser
	a.clearCookie(w, refreshTokenCookie, "/api/v1/auth")
	response.SuccessWithMessage(w, "Password changed, please sign in again", nil)
}

// SwitchWorkspace implements AuthHandler.
func (a *AuthHandlerImpl) SwitchWorkspace(w http.ResponseWriter, r *http.Request) {
	var req auth.SwitchWorkspaceRequest
	if !decodeJSON(w, r, &req, "SwitchWorkspace") {
		return
	}

	resp, err := a.authService.SwitchWorkspace(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	a.setSession(w, resp)
	response.SuccessWithMessage(w, "Workspace switched", resp)
}

// SecurityEvents implements AuthHandler.
func (a *AuthHandlerImpl) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.authService.ListSecurityEvents(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, events)
}
