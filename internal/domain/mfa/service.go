package mfa

import "context"

type MFAService interface {
	Setup(ctx context.Context, userID string) (SetupResponse, error)
	VerifyAndEnable(ctx context.Context, userID string, req CodeRequest) (RecoveryCodesResponse, error)
	// VerifyCode accepts a TOTP or an unused recovery code
	VerifyCode(ctx context.Context, userID, code string) (bool, error)
	Disable(ctx context.Context, userID string, req PasswordRequest) error
	RegenerateRecoveryCodes(ctx context.Context, userID string, req PasswordRequest) (RecoveryCodesResponse, error)
	Status(ctx context.Context, userID string) (StatusResponse, error)
	IsEnabled(ctx context.Context, userID string) (bool, error)
}
