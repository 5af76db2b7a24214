package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/auth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/mfa"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/oauth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

const (
	providerGoogle       = "google"
	securityEventsLimit  = 50
	tokenBytes           = 32
	defaultMaxAttempts   = 5
	defaultLockout       = 15 * time.Minute
	productName          = "InvoiceFlow"
	emailExpiryLayout    = "Jan 2, 2006 15:04 MST"
	generatedUsernameMax = 40
)

var usernameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Options are the settings the auth flows read from configuration
type Options struct {
	FrontendURL      string
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// Repositories groups the persistence the auth flows touch
type Repositories struct {
	Users         user.UserRepository
	Tokens        user.TokenRepository
	RefreshTokens user.RefreshTokenRepository
	Events        user.SecurityEventRepository
	MFA           user.MFARepository
	Workspaces    workspace.WorkspaceRepository
}

type AuthServiceImpl struct {
	db database.Transactor
	user.UserRepository
	tokenRepo        user.TokenRepository
	refreshRepo      user.RefreshTokenRepository
	eventRepo        user.SecurityEventRepository
	mfaRepo          user.MFARepository
	workspaceRepo    workspace.WorkspaceRepository
	workspaceService workspace.WorkspaceService
	mfaService       mfa.MFAService
	jwt.Service
	google       oauth.GoogleService
	emailService email.EmailService
	opts         Options
	now          func() time.Time
}

func NewAuthService(
	db database.Transactor,
	repos Repositories,
	workspaceService workspace.WorkspaceService,
	mfaService mfa.MFAService,
	jwtService jwt.Service,
	googleService oauth.GoogleService,
	emailService email.EmailService,
	opts Options,
) auth.AuthService {
	if opts.MaxLoginAttempts <= 0 {
		opts.MaxLoginAttempts = defaultMaxAttempts
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = defaultLockout
	}
	return &AuthServiceImpl{
		db:               db,
		UserRepository:   repos.Users,
		tokenRepo:        repos.Tokens,
		refreshRepo:      repos.RefreshTokens,
		eventRepo:        repos.Events,
		mfaRepo:          repos.MFA,
		workspaceRepo:    repos.Workspaces,
		workspaceService: workspaceService,
		mfaService:       mfaService,
		Service:          jwtService,
		google:           googleService,
		emailService:     emailService,
		opts:             opts,
		now:              time.Now,
	}
}

func (a *AuthServiceImpl) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *AuthServiceImpl) record(ctx context.Context, userID, eventType string, session auth.SessionTrackingRequest, details map[string]any) {
	event := user.SecurityEvent{
		EventType: eventType,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		Details:   details,
	}
	if userID != "" {
		event.UserID = &userID
	}
	if err := a.eventRepo.Create(ctx, event); err != nil {
		slog.Warn("Failed to record security event", "event", eventType, "error", err)
	}
}

func (a *AuthServiceImpl) link(path, token string) string {
	return strings.TrimRight(a.opts.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// Register implements auth.AuthService.
func (a *AuthServiceImpl) Register(ctx context.Context, req auth.RegisterRequest) (user.UserResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return user.UserResponse{}, err
	}

	exists, err := a.UserRepository.EmailExists(ctx, req.Email)
	if err != nil {
		return user.UserResponse{}, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return user.UserResponse{}, user.ErrUserEmailExists
	}
	exists, err = a.UserRepository.UsernameExists(ctx, req.Username)
	if err != nil {
		return user.UserResponse{}, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return user.UserResponse{}, user.ErrUsernameExists
	}

	hashedPassword, err := a.hashPassword(req.Password)
	if err != nil {
		return user.UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	var newUser user.User
	err = a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		newUser, err = a.createUser(txCtx, user.User{
			Email:        req.Email,
			Username:     req.Username,
			PasswordHash: &hashedPassword,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
		})
		return err
	})
	if err != nil {
		return user.UserResponse{}, err
	}

	if err := a.sendVerification(ctx, newUser); err != nil {
		slog.Error("Failed to send verification email", "user_id", newUser.ID, "error", err)
	}

	return newUser.ToResponse(false), nil
}

// createUser inserts the user with a disabled MFA profile and a personal workspace
func (a *AuthServiceImpl) createUser(ctx context.Context, u user.User) (user.User, error) {
	created, err := a.UserRepository.Create(ctx, u)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrUserEmailExists
		case database.IsUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	if err := a.mfaRepo.Create(ctx, user.MFAProfile{UserID: created.ID}); err != nil {
		return user.User{}, fmt.Errorf("failed to create mfa profile: %w", err)
	}

	if _, err := a.workspaceService.Create(ctx, created.ID, created.Username+"'s Workspace"); err != nil {
		return user.User{}, err
	}
	return created, nil
}

func (a *AuthServiceImpl) issueToken(ctx context.Context, userID, purpose string, ttl time.Duration) (string, time.Time, error) {
	raw, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	now := a.now()
	if err := a.tokenRepo.InvalidateForUser(ctx, userID, purpose, now); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to invalidate old tokens: %w", err)
	}
	expiresAt := now.Add(ttl)
	if err := a.tokenRepo.Create(ctx, user.Token{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token: %w", err)
	}
	return raw, expiresAt, nil
}

func (a *AuthServiceImpl) sendVerification(ctx context.Context, u user.User) error {
	raw, expiresAt, err := a.issueToken(ctx, u.ID, user.TokenEmailVerification, user.EmailVerificationTTL)
	if err != nil {
		return err
	}
	return a.emailService.SendVerification(u.Email, email.VerificationEmail{
		Branding:  email.Branding{BusinessName: productName},
		Name:      u.FullName(),
		Link:      a.link("/verify-email", raw),
		ExpiresAt: expiresAt.UTC().Format(emailExpiryLayout),
	})
}

// consumeToken looks up a single use token and marks it used
func (a *AuthServiceImpl) consumeToken(ctx context.Context, purpose, raw string) (user.Token, error) {
	t, err := a.tokenRepo.GetByHash(ctx, purpose, utils.HashToken(raw))
	if err != nil {
		if database.IsNotFound(err) {
			return user.Token{}, auth.ErrInvalidToken
		}
		return user.Token{}, fmt.Errorf("failed to get token: %w", err)
	}
	now := a.now()
	if t.UsedAt != nil {
		return user.Token{}, auth.ErrInvalidToken
	}
	if !t.IsUsable(now) {
		return user.Token{}, auth.ErrTokenExpired
	}
	if err := a.tokenRepo.MarkUsed(ctx, t.ID, now); err != nil {
		return user.Token{}, fmt.Errorf("failed to mark token used: %w", err)
	}
	return t, nil
}

// VerifyEmail implements auth.AuthService.
func (a *AuthServiceImpl) VerifyEmail(ctx context.Context, req auth.VerifyEmailRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var userID string
	err := a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		t, err := a.consumeToken(txCtx, user.TokenEmailVerification, req.Token)
		if err != nil {
			return err
		}
		userID = t.UserID
		if err := a.UserRepository.MarkEmailVerified(txCtx, t.UserID); err != nil {
			return fmt.Errorf("failed to verify email: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.record(ctx, userID, user.EventEmailVerified, auth.SessionTrackingRequest{}, nil)
	return nil
}

// ResendVerification implements auth.AuthService.
func (a *AuthServiceImpl) ResendVerification(ctx context.Context, req auth.EmailRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := a.UserRepository.GetByEmail(ctx, req.Email)
	if err != nil {
		if database.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if u.EmailVerified {
		return auth.ErrEmailAlreadyVerified
	}
	return a.sendVerification(ctx, u)
}

// Login implements auth.AuthService.
func (a *AuthServiceImpl) Login(ctx context.Context, req auth.LoginRequest, session auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return auth.LoginResponse{}, err
	}

	u, err := a.UserRepository.GetByIdentifier(ctx, strings.TrimSpace(req.Identifier))
	if err != nil {
		if database.IsNotFound(err) {
			a.record(ctx, "", user.EventLoginFailed, session, map[string]any{"identifier": req.Identifier})
			return auth.LoginResponse{}, auth.ErrInvalidCredentials
		}
		return auth.LoginResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	now := a.now()
	if u.IsLocked(now) {
		a.record(ctx, u.ID, user.EventLoginFailed, session, map[string]any{"reason": "locked"})
		return auth.LoginResponse{}, auth.ErrAccountLocked
	}
	if u.PasswordHash == nil {
		return auth.LoginResponse{}, auth.ErrPasswordNotSet
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(req.Password)); err != nil {
		locked := u.RegisterFailedLogin(now, a.opts.MaxLoginAttempts, a.opts.LockoutDuration)
		if err := a.UserRepository.UpdateLoginState(ctx, u); err != nil {
			return auth.LoginResponse{}, fmt.Errorf("failed to update login state: %w", err)
		}
		a.record(ctx, u.ID, user.EventLoginFailed, session, nil)
		if locked {
			a.record(ctx, u.ID, user.EventAccountLocked, session, map[string]any{"locked_until": u.LockedUntil.Format(time.RFC3339)})
			return auth.LoginResponse{}, auth.ErrAccountLocked
		}
		return auth.LoginResponse{}, auth.ErrInvalidCredentials
	}

	if !u.EmailVerified {
		return auth.LoginResponse{}, auth.ErrEmailNotVerified
	}

	return a.completeLogin(ctx, u, session)
}

// completeLogin issues a session, or an MFA challenge when the user has MFA on
func (a *AuthServiceImpl) completeLogin(ctx context.Context, u user.User, session auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	enabled, err := a.mfaService.IsEnabled(ctx, u.ID)
	if err != nil {
		return auth.LoginResponse{}, err
	}
	if enabled {
		mfaToken, _, err := a.Service.GenerateMFAToken(u.ID)
		if err != nil {
			return auth.LoginResponse{}, fmt.Errorf("failed to create mfa token: %w", err)
		}
		a.record(ctx, u.ID, user.EventMFAChallenge, session, nil)
		return auth.LoginResponse{MFARequired: true, MFAToken: mfaToken}, nil
	}
	return a.startSession(ctx, u, false, session)
}

func (a *AuthServiceImpl) startSession(ctx context.Context, u user.User, mfaEnabled bool, session auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	membership, err := a.defaultMembership(ctx, u.ID)
	if err != nil {
		return auth.LoginResponse{}, err
	}

	u.RegisterSuccessfulLogin(a.now())

	var tokens auth.TokenResponse
	err = a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.UserRepository.UpdateLoginState(txCtx, u); err != nil {
			return fmt.Errorf("failed to update login state: %w", err)
		}
		tokens, err = a.issueSession(txCtx, u, membership)
		return err
	})
	if err != nil {
		return auth.LoginResponse{}, err
	}

	a.record(ctx, u.ID, user.EventLoginSuccess, session, nil)

	userResp := u.ToResponse(mfaEnabled)
	ws := auth.NewWorkspaceSummary(membership)
	return auth.LoginResponse{Tokens: &tokens, User: &userResp, Workspace: &ws}, nil
}

func (a *AuthServiceImpl) defaultMembership(ctx context.Context, userID string) (workspace.Membership, error) {
	memberships, err := a.workspaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return workspace.Membership{}, fmt.Errorf("failed to list workspaces: %w", err)
	}
	if len(memberships) == 0 {
		return workspace.Membership{}, auth.ErrNoWorkspace
	}
	return memberships[0], nil
}

// issueSession signs an access token bound to membership and stores a new refresh token
func (a *AuthServiceImpl) issueSession(ctx context.Context, u user.User, membership workspace.Membership) (auth.TokenResponse, error) {
	var tokens auth.TokenResponse
	var err error

	tokens.AccessToken, tokens.AccessTokenExpiresIn, err = a.Service.GenerateAccessToken(u.ID, u.Email, membership.Workspace.ID, membership.Role)
	if err != nil {
		return auth.TokenResponse{}, fmt.Errorf("failed to create access token: %w", err)
	}
	tokens.RefreshToken, tokens.RefreshTokenExpiresIn, err = a.Service.GenerateRefreshToken(u.ID)
	if err != nil {
		return auth.TokenResponse{}, fmt.Errorf("failed to create refresh token: %w", err)
	}

	if err := a.refreshRepo.Create(ctx, user.RefreshToken{
		UserID:    u.ID,
		TokenHash: utils.HashToken(tokens.RefreshToken),
		ExpiresAt: time.Unix(tokens.RefreshTokenExpiresIn, 0),
	}); err != nil {
		return auth.TokenResponse{}, fmt.Errorf("failed to save refresh token to database: %w", err)
	}
	return tokens, nil
}

// LoginMFA implements auth.AuthService.
func (a *AuthServiceImpl) LoginMFA(ctx context.Context, req auth.LoginMFARequest, session auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return auth.LoginResponse{}, err
	}

	userID, err := a.Service.ValidateMFAToken(req.MFAToken)
	if err != nil {
		return auth.LoginResponse{}, auth.ErrInvalidToken
	}

	ok, err := a.mfaService.VerifyCode(ctx, userID, req.Code)
	if err != nil {
		return auth.LoginResponse{}, err
	}
	if !ok {
		return auth.LoginResponse{}, auth.ErrInvalidMFACode
	}

	u, err := a.UserRepository.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return auth.LoginResponse{}, auth.ErrInvalidToken
		}
		return auth.LoginResponse{}, fmt.Errorf("failed to get user: %w", err)
	}
	return a.startSession(ctx, u, true, session)
}

// GoogleAuthURL implements auth.AuthService.
func (a *AuthServiceImpl) GoogleAuthURL(ctx context.Context) (string, string, error) {
	if a.google == nil || !a.google.Enabled() {
		return "", "", auth.ErrOAuthNotConfigured
	}
	state, err := a.google.GenerateState()
	if err != nil {
		return "", "", err
	}
	return a.google.RedirectURL(state), state, nil
}

// LoginWithGoogle implements auth.AuthService.
func (a *AuthServiceImpl) LoginWithGoogle(ctx context.Context, req auth.GoogleCallbackRequest, expectedState string, session auth.SessionTrackingRequest) (auth.LoginResponse, error) {
	if a.google == nil || !a.google.Enabled() {
		return auth.LoginResponse{}, auth.ErrOAuthNotConfigured
	}
	if err := req.Validate(); err != nil {
		return auth.LoginResponse{}, err
	}
	if expectedState == "" || req.State != expectedState {
		return auth.LoginResponse{}, auth.ErrInvalidOAuthState
	}

	info, err := a.google.Exchange(ctx, req.Code)
	if err != nil {
		if errors.Is(err, oauth.ErrEmailNotVerified) {
			return auth.LoginResponse{}, auth.ErrEmailNotVerified
		}
		return auth.LoginResponse{}, fmt.Errorf("failed to exchange google code: %w", err)
	}

	u, err := a.findOrCreateGoogleUser(ctx, info)
	if err != nil {
		return auth.LoginResponse{}, err
	}
	if u.IsLocked(a.now()) {
		return auth.LoginResponse{}, auth.ErrAccountLocked
	}
	return a.completeLogin(ctx, u, session)
}

func (a *AuthServiceImpl) findOrCreateGoogleUser(ctx context.Context, info oauth.GoogleInformation) (user.User, error) {
	u, err := a.UserRepository.GetByOAuth(ctx, providerGoogle, info.GoogleID)
	if err == nil {
		return u, nil
	}
	if !database.IsNotFound(err) {
		return user.User{}, fmt.Errorf("failed to get user by google id: %w", err)
	}

	emailAddr := strings.ToLower(strings.TrimSpace(info.Email))
	u, err = a.UserRepository.GetByEmail(ctx, emailAddr)
	if err == nil {
		// Existing password account, link it
		if err := a.UserRepository.LinkOAuth(ctx, u.ID, providerGoogle, info.GoogleID); err != nil {
			if database.IsUniqueViolation(err) {
				return user.User{}, user.ErrOAuthProviderIDExists
			}
			return user.User{}, fmt.Errorf("failed to link google account: %w", err)
		}
		if !u.EmailVerified {
			if err := a.UserRepository.MarkEmailVerified(ctx, u.ID); err != nil {
				return user.User{}, fmt.Errorf("failed to verify email: %w", err)
			}
			u.EmailVerified = true
		}
		provider, providerID := providerGoogle, info.GoogleID
		u.OAuthProvider, u.OAuthProviderID = &provider, &providerID
		return u, nil
	}
	if !database.IsNotFound(err) {
		return user.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	username, err := a.availableUsername(ctx, emailAddr)
	if err != nil {
		return user.User{}, err
	}

	provider, providerID := providerGoogle, info.GoogleID
	var created user.User
	err = a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		created, err = a.createUser(txCtx, user.User{
			Email:           emailAddr,
			Username:        username,
			FirstName:       info.GivenName,
			LastName:        info.FamilyName,
			OAuthProvider:   &provider,
			OAuthProviderID: &providerID,
			EmailVerified:   true,
		})
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return created, nil
}

// availableUsername derives a username from the email local part, suffixing it until free
func (a *AuthServiceImpl) availableUsername(ctx context.Context, emailAddr string) (string, error) {
	base, _, _ := strings.Cut(emailAddr, "@")
	base = usernameCleaner.ReplaceAllString(base, "")
	if len(base) > generatedUsernameMax {
		base = base[:generatedUsernameMax]
	}
	for len(base) < 3 {
		base += "0"
	}

	candidate := base
	for i := 1; i <= 20; i++ {
		exists, err := a.UserRepository.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	suffix, err := utils.RandomToken(4)
	if err != nil {
		return "", err
	}
	return base + "-" + strings.ToLower(usernameCleaner.ReplaceAllString(suffix, "")), nil
}

// RefreshToken implements auth.AuthService.
func (a *AuthServiceImpl) RefreshToken(ctx context.Context, req auth.RefreshTokenRequest) (auth.TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return auth.TokenResponse{}, err
	}

	userID, err := a.Service.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return auth.TokenResponse{}, auth.ErrInvalidToken
	}

	stored, err := a.refreshRepo.GetByHash(ctx, utils.HashToken(req.RefreshToken))
	if err != nil {
		if database.IsNotFound(err) {
			return auth.TokenResponse{}, auth.ErrInvalidToken
		}
		return auth.TokenResponse{}, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if stored.UserID != userID {
		return auth.TokenResponse{}, auth.ErrInvalidToken
	}

	now := a.now()
	if stored.RevokedAt != nil {
		// A rotated token came back, end every session of this user
		if err := a.refreshRepo.RevokeAllForUser(ctx, userID, now); err != nil {
			slog.Error("Failed to revoke sessions after refresh token reuse", "user_id", userID, "error", err)
		}
		return auth.TokenResponse{}, auth.ErrRefreshTokenRevoked
	}
	if !now.Before(stored.ExpiresAt) {
		return auth.TokenResponse{}, auth.ErrTokenExpired
	}

	u, err := a.UserRepository.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return auth.TokenResponse{}, auth.ErrInvalidToken
		}
		return auth.TokenResponse{}, fmt.Errorf("failed to get user: %w", err)
	}
	membership, err := a.defaultMembership(ctx, userID)
	if err != nil {
		return auth.TokenResponse{}, err
	}

	var tokens auth.TokenResponse
	err = a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.refreshRepo.Revoke(txCtx, stored.ID, now); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		tokens, err = a.issueSession(txCtx, u, membership)
		return err
	})
	if err != nil {
		return auth.TokenResponse{}, err
	}
	return tokens, nil
}

// Logout implements auth.AuthService.
func (a *AuthServiceImpl) Logout(ctx context.Context, userID string, req auth.RefreshTokenRequest, session auth.SessionTrackingRequest) error {
	if req.RefreshToken != "" {
		stored, err := a.refreshRepo.GetByHash(ctx, utils.HashToken(req.RefreshToken))
		switch {
		case err == nil:
			if stored.UserID == userID && stored.RevokedAt == nil {
				if err := a.refreshRepo.Revoke(ctx, stored.ID, a.now()); err != nil {
					return fmt.Errorf("failed to revoke refresh token: %w", err)
				}
			}
		case !database.IsNotFound(err):
			return fmt.Errorf("failed to get refresh token: %w", err)
		}
	}

	a.record(ctx, userID, user.EventLogout, session, nil)
	return nil
}

// ForgotPassword implements auth.AuthService.
func (a *AuthServiceImpl) ForgotPassword(ctx context.Context, req auth.EmailRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := a.UserRepository.GetByEmail(ctx, req.Email)
	if err != nil {
		if database.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	raw, expiresAt, err := a.issueToken(ctx, u.ID, user.TokenPasswordReset, user.PasswordResetTTL)
	if err != nil {
		return err
	}
	if err := a.emailService.SendPasswordReset(u.Email, email.PasswordResetEmail{
		Branding:  email.Branding{BusinessName: productName},
		Link:      a.link("/reset-password", raw),
		ExpiresAt: expiresAt.UTC().Format(emailExpiryLayout),
	}); err != nil {
		slog.Error("Failed to send password reset email", "user_id", u.ID, "error", err)
	}
	return nil
}

// ResetPassword implements auth.AuthService.
func (a *AuthServiceImpl) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest, session auth.SessionTrackingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	hashedPassword, err := a.hashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var userID string
	err = a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		t, err := a.consumeToken(txCtx, user.TokenPasswordReset, req.Token)
		if err != nil {
			return err
		}
		userID = t.UserID
		if err := a.UserRepository.UpdatePassword(txCtx, t.UserID, hashedPassword); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if err := a.refreshRepo.RevokeAllForUser(txCtx, t.UserID, a.now()); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.record(ctx, userID, user.EventPasswordReset, session, nil)
	return nil
}

// ChangePassword implements auth.AuthService.
func (a *AuthServiceImpl) ChangePassword(ctx context.Context, userID string, req auth.ChangePasswordRequest, session auth.SessionTrackingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := a.UserRepository.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return user.ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if u.PasswordHash == nil {
		return auth.ErrPasswordNotSet
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(req.OldPassword)); err != nil {
		return auth.ErrInvalidCredentials
	}

	hashedPassword, err := a.hashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = a.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.UserRepository.UpdatePassword(txCtx, userID, hashedPassword); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if err := a.refreshRepo.RevokeAllForUser(txCtx, userID, a.now()); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.record(ctx, userID, user.EventPasswordChanged, session, nil)
	return nil
}

// SwitchWorkspace implements auth.AuthService.
func (a *AuthServiceImpl) SwitchWorkspace(ctx context.Context, userID string, req auth.SwitchWorkspaceRequest) (auth.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return auth.LoginResponse{}, err
	}

	member, err := a.workspaceRepo.GetMember(ctx, req.WorkspaceID, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return auth.LoginResponse{}, workspace.ErrNotAMember
		}
		return auth.LoginResponse{}, fmt.Errorf("failed to get membership: %w", err)
	}
	ws, err := a.workspaceRepo.GetByID(ctx, req.WorkspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return auth.LoginResponse{}, workspace.ErrWorkspaceNotFound
		}
		return auth.LoginResponse{}, fmt.Errorf("failed to get workspace: %w", err)
	}
	u, err := a.UserRepository.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return auth.LoginResponse{}, user.ErrUserNotFound
		}
		return auth.LoginResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	membership := workspace.Membership{Workspace: ws, Role: member.Role}
	tokens, err := a.issueSession(ctx, u, membership)
	if err != nil {
		return auth.LoginResponse{}, err
	}

	mfaEnabled, err := a.mfaService.IsEnabled(ctx, userID)
	if err != nil {
		return auth.LoginResponse{}, err
	}
	userResp := u.ToResponse(mfaEnabled)
	summary := auth.NewWorkspaceSummary(membership)
	return auth.LoginResponse{Tokens: &tokens, User: &userResp, Workspace: &summary}, nil
}

// Me implements auth.AuthService.
func (a *AuthServiceImpl) Me(ctx context.Context, userID, workspaceID string) (auth.MeResponse, error) {
	u, err := a.UserRepository.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return auth.MeResponse{}, user.ErrUserNotFound
		}
		return auth.MeResponse{}, fmt.Errorf("failed to get user: %w", err)
	}
	mfaEnabled, err := a.mfaService.IsEnabled(ctx, userID)
	if err != nil {
		return auth.MeResponse{}, err
	}
	memberships, err := a.workspaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return auth.MeResponse{}, fmt.Errorf("failed to list workspaces: %w", err)
	}

	resp := auth.MeResponse{
		User:       u.ToResponse(mfaEnabled),
		Workspaces: make([]auth.WorkspaceSummary, 0, len(memberships)),
	}
	for _, m := range memberships {
		summary := auth.NewWorkspaceSummary(m)
		resp.Workspaces = append(resp.Workspaces, summary)
		if m.Workspace.ID == workspaceID {
			resp.Workspace = &summary
		}
	}
	return resp, nil
}

// UpdateProfile implements auth.AuthService.
func (a *AuthServiceImpl) UpdateProfile(ctx context.Context, userID string, req user.UpdateProfileRequest) (user.UserResponse, error) {
	if err := req.Validate(); err != nil {
		return user.UserResponse{}, err
	}

	u, err := a.UserRepository.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return user.UserResponse{}, user.ErrUserNotFound
		}
		return user.UserResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	req.Apply(&u)
	if err := a.UserRepository.UpdateProfile(ctx, u); err != nil {
		return user.UserResponse{}, fmt.Errorf("failed to update profile: %w", err)
	}

	mfaEnabled, err := a.mfaService.IsEnabled(ctx, userID)
	if err != nil {
		return user.UserResponse{}, err
	}
	return u.ToResponse(mfaEnabled), nil
}

// ListSecurityEvents implements auth.AuthService.
func (a *AuthServiceImpl) ListSecurityEvents(ctx context.Context, userID string) ([]user.SecurityEventResponse, error) {
	events, err := a.eventRepo.ListByUser(ctx, userID, securityEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	resp := make([]user.SecurityEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, e.ToResponse())
	}
	return resp, nil
}
