package postgresql

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

// newID returns id, or a fresh time ordered UUID when id is empty
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}

const userColumns = `id, email, username, password_hash, first_name, last_name, oauth_provider, oauth_provider_id,
		email_verified, failed_login_attempts, locked_until, last_login_at, created_at, updated_at`

type userRepositoryImpl struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) user.UserRepository {
	return &userRepositoryImpl{db: db}
}

func scanUser(row interface{ Scan(dest ...any) error }) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.OAuthProvider,
		&u.OAuthProviderID,
		&u.EmailVerified,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create implements user.UserRepository.
func (r *userRepositoryImpl) Create(ctx context.Context, newUser user.User) (user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO users (
			id, email, username, password_hash, first_name, last_name,
			oauth_provider, oauth_provider_id, email_verified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	return scanUser(q.QueryRow(ctx, query,
		newID(newUser.ID),
		newUser.Email,
		newUser.Username,
		newUser.PasswordHash,
		newUser.FirstName,
		newUser.LastName,
		newUser.OAuthProvider,
		newUser.OAuthProviderID,
		newUser.EmailVerified,
	))
}

// GetByID implements user.UserRepository.
func (r *userRepositoryImpl) GetByID(ctx context.Context, id string) (user.User, error) {
	q := GetQuerier(ctx, r.db)
	return scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail implements user.UserRepository.
func (r *userRepositoryImpl) GetByEmail(ctx context.Context, email string) (user.User, error) {
	q := GetQuerier(ctx, r.db)
	return scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
}

// GetByIdentifier implements user.UserRepository.
func (r *userRepositoryImpl) GetByIdentifier(ctx context.Context, identifier string) (user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = LOWER($1) OR username = $1
		ORDER BY (email = LOWER($1)) DESC
		LIMIT 1
	`
	return scanUser(q.QueryRow(ctx, query, identifier))
}

// GetByOAuth implements user.UserRepository.
func (r *userRepositoryImpl) GetByOAuth(ctx context.Context, provider, providerID string) (user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE oauth_provider = $1 AND oauth_provider_id = $2`
	return scanUser(q.QueryRow(ctx, query, provider, providerID))
}

// EmailExists implements user.UserRepository.
func (r *userRepositoryImpl) EmailExists(ctx context.Context, email string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = LOWER($1))`, email).Scan(&exists)
	return exists, err
}

// UsernameExists implements user.UserRepository.
func (r *userRepositoryImpl) UsernameExists(ctx context.Context, username string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// LinkOAuth implements user.UserRepository.
func (r *userRepositoryImpl) LinkOAuth(ctx context.Context, userID, provider, providerID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE users
		SET oauth_provider = $1, oauth_provider_id = $2, email_verified = TRUE, updated_at = NOW()
		WHERE id = $3
	`
	return execOne(ctx, q, query, provider, providerID, userID)
}

// UpdateProfile implements user.UserRepository.
func (r *userRepositoryImpl) UpdateProfile(ctx context.Context, u user.User) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE users
		SET username = $1, first_name = $2, last_name = $3, updated_at = NOW()
		WHERE id = $4
	`
	return execOne(ctx, q, query, u.Username, u.FirstName, u.LastName, u.ID)
}

// UpdatePassword implements user.UserRepository.
func (r *userRepositoryImpl) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, userID)
}

// UpdateLoginState implements user.UserRepository.
func (r *userRepositoryImpl) UpdateLoginState(ctx context.Context, u user.User) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, last_login_at = $3, updated_at = NOW()
		WHERE id = $4
	`
	return execOne(ctx, q, query, u.FailedLoginAttempts, u.LockedUntil, u.LastLoginAt, u.ID)
}

// MarkEmailVerified implements user.UserRepository.
func (r *userRepositoryImpl) MarkEmailVerified(ctx context.Context, userID string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID)
}

// ==================== Tokens ====================

type tokenRepositoryImpl struct {
	db *database.DB
}

func NewTokenRepository(db *database.DB) user.TokenRepository {
	return &tokenRepositoryImpl{db: db}
}

func (r *tokenRepositoryImpl) Create(ctx context.Context, t user.Token) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO user_tokens (id, user_id, purpose, token_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query, newID(t.ID), t.UserID, t.Purpose, t.TokenHash, t.ExpiresAt)
	return err
}

func (r *tokenRepositoryImpl) GetByHash(ctx context.Context, purpose, tokenHash string) (user.Token, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, user_id, purpose, token_hash, expires_at, used_at, created_at
		FROM user_tokens
		WHERE purpose = $1 AND token_hash = $2
	`
	var t user.Token
	err := q.QueryRow(ctx, query, purpose, tokenHash).Scan(
		&t.ID, &t.UserID, &t.Purpose, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt,
	)
	return t, err
}

func (r *tokenRepositoryImpl) MarkUsed(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `UPDATE user_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL`, at, id)
}

func (r *tokenRepositoryImpl) InvalidateForUser(ctx context.Context, userID, purpose string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx,
		`UPDATE user_tokens SET used_at = $1 WHERE user_id = $2 AND purpose = $3 AND used_at IS NULL`,
		at, userID, purpose,
	)
	return err
}

// ==================== Security events ====================

type securityEventRepositoryImpl struct {
	db *database.DB
}

func NewSecurityEventRepository(db *database.DB) user.SecurityEventRepository {
	return &securityEventRepositoryImpl{db: db}
}

func (r *securityEventRepositoryImpl) Create(ctx context.Context, e user.SecurityEvent) error {
	q := GetQuerier(ctx, r.db)

	details, err := json.Marshal(orEmptyMap(e.Details))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO security_events (id, user_id, event_type, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = q.Exec(ctx, query, newID(e.ID), e.UserID, e.EventType, e.IPAddress, e.UserAgent, details)
	return err
}

func (r *securityEventRepositoryImpl) ListByUser(ctx context.Context, userID string, limit int) ([]user.SecurityEvent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, user_id, event_type, ip_address, user_agent, details, created_at
		FROM security_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []user.SecurityEvent
	for rows.Next() {
		var e user.SecurityEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.IPAddress, &e.UserAgent, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ==================== MFA ====================

type mfaRepositoryImpl struct {
	db *database.DB
}

func NewMFARepository(db *database.DB) user.MFARepository {
	return &mfaRepositoryImpl{db: db}
}

func (r *mfaRepositoryImpl) Create(ctx context.Context, p user.MFAProfile) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO mfa_profiles (user_id, enabled, secret, recovery_codes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := q.Exec(ctx, query, p.UserID, p.Enabled, p.Secret, orEmptySlice(p.RecoveryCodes))
	return err
}

func (r *mfaRepositoryImpl) Get(ctx context.Context, userID string) (user.MFAProfile, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT user_id, enabled, secret, recovery_codes, last_used_at, created_at, updated_at
		FROM mfa_profiles
		WHERE user_id = $1
	`
	var p user.MFAProfile
	err := q.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Enabled, &p.Secret, &p.RecoveryCodes, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *mfaRepositoryImpl) Update(ctx context.Context, p user.MFAProfile) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE mfa_profiles
		SET enabled = $1, secret = $2, recovery_codes = $3, last_used_at = $4, updated_at = NOW()
		WHERE user_id = $5
	`
	return execOne(ctx, q, query, p.Enabled, p.Secret, orEmptySlice(p.RecoveryCodes), p.LastUsedAt, p.UserID)
}
