package auth

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account is temporarily locked")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrEmailAlreadyVerified = errors.New("email already verified")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
	ErrInvalidMFACode       = errors.New("invalid verification code")
	ErrNoWorkspace          = errors.New("user has no workspace")
	ErrPasswordNotSet       = errors.New("account has no password, sign in with google")
	ErrInvalidOAuthState    = errors.New("invalid oauth state")
	ErrOAuthNotConfigured   = errors.New("google login is not configured")
)
