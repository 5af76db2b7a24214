package auth

import (
	"context"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
)

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (user.UserResponse, error)
	VerifyEmail(ctx context.Context, req VerifyEmailRequest) error
	ResendVerification(ctx context.Context, req EmailRequest) error
	Login(ctx context.Context, req LoginRequest, session SessionTrackingRequest) (LoginResponse, error)
	LoginMFA(ctx context.Context, req LoginMFARequest, session SessionTrackingRequest) (LoginResponse, error)
	// GoogleAuthURL returns the consent URL and the state the callback must echo
	GoogleAuthURL(ctx context.Context) (url string, state string, err error)
	LoginWithGoogle(ctx context.Context, req GoogleCallbackRequest, expectedState string, session SessionTrackingRequest) (LoginResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (TokenResponse, error)
	Logout(ctx context.Context, userID string, req RefreshTokenRequest, session SessionTrackingRequest) error
	ForgotPassword(ctx context.Context, req EmailRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest, session SessionTrackingRequest) error
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest, session SessionTrackingRequest) error
	SwitchWorkspace(ctx context.Context, userID string, req SwitchWorkspaceRequest) (LoginResponse, error)
	Me(ctx context.Context, userID, workspaceID string) (MeResponse, error)
	UpdateProfile(ctx context.Context, userID string, req user.UpdateProfileRequest) (user.UserResponse, error)
	ListSecurityEvents(ctx context.Context, userID string) ([]user.SecurityEventResponse, error)
}
