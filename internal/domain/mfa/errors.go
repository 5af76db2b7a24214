package mfa

import "errors"

var (
	ErrNotSetUp        = errors.New("mfa has not been set up")
	ErrAlreadyEnabled  = errors.New("mfa is already enabled")
	ErrNotEnabled      = errors.New("mfa is not enabled")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrInvalidPassword = errors.New("invalid password")
)
