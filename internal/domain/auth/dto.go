package auth

import (
	"strings"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

type RegisterRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r *RegisterRequest) Validate() error {
	var errs validator.ValidationErrors

	// Email
	if validator.IsEmpty(r.Email) {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "email is required",
		})
	} else if len(r.Email) > 254 {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "email must not exceed 254 characters",
		})
	} else if !validator.IsValidEmail(r.Email) {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "email must be a valid email address",
		})
	}

	// Username
	if validator.IsEmpty(r.Username) {
		errs = append(errs, validator.ValidationError{
			Field:   "username",
			Message: "username is required",
		})
	} else if len(r.Username) < 3 {
		errs = append(errs, validator.ValidationError{
			Field:   "username",
			Message: "username must be at least 3 characters long",
		})
	} else if len(r.Username) > 50 {
		errs = append(errs, validator.ValidationError{
			Field:   "username",
			Message: "username must not exceed 50 characters",
		})
	} else if !validator.IsValidUsername(r.Username) {
		errs = append(errs, validator.ValidationError{
			Field:   "username",
			Message: "username may only contain letters, numbers, dots, underscores, and hyphens",
		})
	}

	if len(r.FirstName) > 150 {
		errs = append(errs, validator.ValidationError{
			Field:   "first_name",
			Message: "first_name must not exceed 150 characters",
		})
	}
	if len(r.LastName) > 150 {
		errs = append(errs, validator.ValidationError{
			Field:   "last_name",
			Message: "last_name must not exceed 150 characters",
		})
	}

	// Password
	errs = append(errs, validatePassword("password", r.Password)...)
	if validator.IsEmpty(r.ConfirmPassword) {
		errs = append(errs, validator.ValidationError{
			Field:   "confirm_password",
			Message: "confirm_password is required",
		})
	} else if r.ConfirmPassword != r.Password {
		errs = append(errs, validator.ValidationError{
			Field:   "confirm_password",
			Message: "password and confirm_password do not match",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// Normalize lowercases the email and trims the name fields
func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func validatePassword(field, password string) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if validator.IsEmpty(password) {
		errs.Add(field, field+" is required")
	} else if len(password) < 8 {
		errs.Add(field, field+" must be at least 8 characters long")
	} else if len(password) > 72 {
		errs.Add(field, field+" must not exceed 72 characters")
	}
	return errs
}

// LoginRequest accepts either an email or a username as identifier
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Identifier) {
		errs = append(errs, validator.ValidationError{
			Field:   "identifier",
			Message: "identifier is required",
		})
	} else if len(r.Identifier) > 254 {
		errs = append(errs, validator.ValidationError{
			Field:   "identifier",
			Message: "identifier must not exceed 254 characters",
		})
	}

	if validator.IsEmpty(r.Password) {
		errs = append(errs, validator.ValidationError{
			Field:   "password",
			Message: "password is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type LoginMFARequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required,max=20"`
}

func (r *LoginMFARequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type GoogleCallbackRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}

func (r *GoogleCallbackRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *RefreshTokenRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RefreshToken) {
		errs = append(errs, validator.ValidationError{
			Field:   "refresh_token",
			Message: "refresh_token is required",
		})
	}
	if len(r.RefreshToken) > 2048 {
		errs = append(errs, validator.ValidationError{
			Field:   "refresh_token",
			Message: "refresh_token must not exceed 2048 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *EmailRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=255"`
}

func (r *VerifyEmailRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r *ResetPasswordRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.Token) {
		errs.Add("token", "token is required")
	}
	errs = append(errs, validatePassword("new_password", r.NewPassword)...)
	if r.ConfirmPassword != r.NewPassword {
		errs.Add("confirm_password", "new_password and confirm_password do not match")
	}
	return errs.OrNil()
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r *ChangePasswordRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.OldPassword) {
		errs.Add("old_password", "old_password is required")
	}
	errs = append(errs, validatePassword("new_password", r.NewPassword)...)
	if r.ConfirmPassword != r.NewPassword {
		errs.Add("confirm_password", "new_password and confirm_password do not match")
	} else if r.NewPassword != "" && r.NewPassword == r.OldPassword {
		errs.Add("new_password", "new_password must differ from old_password")
	}
	return errs.OrNil()
}

type SwitchWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required,uuid"`
}

func (r *SwitchWorkspaceRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

// SessionTrackingRequest carries client details recorded on security events
type SessionTrackingRequest struct {
	UserAgent string
	IPAddress string
}

type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	AccessTokenExpiresIn  int64  `json:"access_token_expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// LoginResponse is either a session or, when MFA is enabled, a challenge
type LoginResponse struct {
	MFARequired bool               `json:"mfa_required"`
	MFAToken    string             `json:"mfa_token,omitempty"`
	Tokens      *TokenResponse     `json:"tokens,omitempty"`
	User        *user.UserResponse `json:"user,omitempty"`
	Workspace   *WorkspaceSummary  `json:"workspace,omitempty"`
}

type WorkspaceSummary struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Slug string         `json:"slug"`
	Role workspace.Role `json:"role"`
}

type MeResponse struct {
	User       user.UserResponse  `json:"user"`
	Workspace  *WorkspaceSummary  `json:"workspace,omitempty"`
	Workspaces []WorkspaceSummary `json:"workspaces"`
}

func NewWorkspaceSummary(m workspace.Membership) WorkspaceSummary {
	return WorkspaceSummary{
		ID:   m.Workspace.ID,
		Name: m.Workspace.Name,
		Slug: m.Workspace.Slug,
		Role: m.Role,
	}
}
