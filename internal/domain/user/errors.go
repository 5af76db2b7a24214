package user

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserEmailExists       = errors.New("email already registered")
	ErrUsernameExists        = errors.New("username already taken")
	ErrOAuthProviderIDExists = errors.New("oauth provider id already registered")
	ErrTokenNotFound         = errors.New("token not found")
	ErrRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrMFAProfileNotFound    = errors.New("mfa profile not found")
)
