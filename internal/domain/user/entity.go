package user

import (
	"strings"
	"time"
)

// Token purposes stored in user_tokens
const (
	TokenEmailVerification = "email_verification"
	TokenPasswordReset     = "password_reset"
)

const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour
)

// Security event types
const (
	EventLoginSuccess        = "login_success"
	EventLoginFailed         = "login_failed"
	EventAccountLocked       = "account_locked"
	EventMFAChallenge        = "mfa_challenge"
	EventMFAEnabled          = "mfa_enabled"
	EventMFADisabled         = "mfa_disabled"
	EventMFAFailed           = "mfa_failed"
	EventRecoveryCodeUsed    = "recovery_code_used"
	EventRecoveryRegenerated = "recovery_codes_regenerated"
	EventPasswordChanged     = "password_changed"
	EventPasswordReset       = "password_reset"
	EventEmailVerified       = "email_verified"
	EventLogout              = "logout"
)

type User struct {
	ID                  string
	Email               string
	Username            string
	PasswordHash        *string
	FirstName           string
	LastName            string
	OAuthProvider       *string
	OAuthProviderID     *string
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName joins first and last name, falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// IsLocked reports whether sign-in is blocked at now
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// RegisterFailedLogin counts a failed password and locks the account once
// maxAttempts is reached. It returns true when this call locked the account.
func (u *User) RegisterFailedLogin(now time.Time, maxAttempts int, lockout time.Duration) bool {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		until := now.Add(lockout)
		u.LockedUntil = &until
		u.FailedLoginAttempts = 0
		return true
	}
	return false
}

func (u *User) RegisterSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// Token is a single use email verification or password reset token
type Token struct {
	ID        string
	UserID    string
	Purpose   string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t *Token) IsUsable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

type SecurityEvent struct {
	ID        string
	UserID    *string
	EventType string
	IPAddress string
	UserAgent string
	Details   map[string]any
	CreatedAt time.Time
}

type MFAProfile struct {
	UserID        string
	Enabled       bool
	Secret        string
	RecoveryCodes []string
	LastUsedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
