package user

import (
	"context"
	"time"
)

type UserRepository interface {
	Create(ctx context.Context, newUser User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// GetByIdentifier looks a user up by email or username
	GetByIdentifier(ctx context.Context, identifier string) (User, error)
	GetByOAuth(ctx context.Context, provider, providerID string) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	LinkOAuth(ctx context.Context, userID, provider, providerID string) error
	UpdateProfile(ctx context.Context, u User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLoginState(ctx context.Context, u User) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

type TokenRepository interface {
	Create(ctx context.Context, t Token) error
	GetByHash(ctx context.Context, purpose, tokenHash string) (Token, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	// InvalidateForUser marks the unused tokens of a purpose as used
	InvalidateForUser(ctx context.Context, userID, purpose string, at time.Time) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

type SecurityEventRepository interface {
	Create(ctx context.Context, e SecurityEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]SecurityEvent, error)
}

type MFARepository interface {
	Create(ctx context.Context, p MFAProfile) error
	Get(ctx context.Context, userID string) (MFAProfile, error)
	Update(ctx context.Context, p MFAProfile) error
}
