package mfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/mfa"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	totp "github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/mfa"
)

type MFAServiceImpl struct {
	userRepo  user.UserRepository
	mfaRepo   user.MFARepository
	eventRepo user.SecurityEventRepository
	now       func() time.Time
}

func NewMFAService(userRepository user.UserRepository, mfaRepository user.MFARepository, eventRepository user.SecurityEventRepository) mfa.MFAService {
	return &MFAServiceImpl{
		userRepo:  userRepository,
		mfaRepo:   mfaRepository,
		eventRepo: eventRepository,
		now:       time.Now,
	}
}

func (s *MFAServiceImpl) profile(ctx context.Context, userID string) (user.MFAProfile, error) {
	p, err := s.mfaRepo.Get(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return user.MFAProfile{}, mfa.ErrNotSetUp
		}
		return user.MFAProfile{}, fmt.Errorf("failed to get mfa profile: %w", err)
	}
	return p, nil
}

func (s *MFAServiceImpl) record(ctx context.Context, userID, eventType string, details map[string]any) {
	if err := s.eventRepo.Create(ctx, user.SecurityEvent{UserID: &userID, EventType: eventType, Details: details}); err != nil {
		slog.Warn("Failed to record security event", "user_id", userID, "event", eventType, "error", err)
	}
}

func (s *MFAServiceImpl) checkPassword(ctx context.Context, userID, password string) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return user.ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if u.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) != nil {
		return mfa.ErrInvalidPassword
	}
	return nil
}

// Setup implements mfa.MFAService.
func (s *MFAServiceImpl) Setup(ctx context.Context, userID string) (mfa.SetupResponse, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return mfa.SetupResponse{}, user.ErrUserNotFound
		}
		return mfa.SetupResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	p, err := s.profile(ctx, userID)
	exists := err == nil
	if err != nil && !errors.Is(err, mfa.ErrNotSetUp) {
		return mfa.SetupResponse{}, err
	}
	if p.Enabled {
		return mfa.SetupResponse{}, mfa.ErrAlreadyEnabled
	}

	key, err := totp.Generate(mfa.Issuer, u.Email)
	if err != nil {
		return mfa.SetupResponse{}, err
	}

	p.UserID = userID
	p.Secret = key.Secret
	p.RecoveryCodes = nil
	if exists {
		err = s.mfaRepo.Update(ctx, p)
	} else {
		err = s.mfaRepo.Create(ctx, p)
	}
	if err != nil {
		return mfa.SetupResponse{}, fmt.Errorf("failed to store mfa secret: %w", err)
	}

	return mfa.SetupResponse{Secret: key.Secret, ProvisioningURI: key.URI}, nil
}

// VerifyAndEnable implements mfa.MFAService.
func (s *MFAServiceImpl) VerifyAndEnable(ctx context.Context, userID string, req mfa.CodeRequest) (mfa.RecoveryCodesResponse, error) {
	if err := req.Validate(); err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}

	p, err := s.profile(ctx, userID)
	if err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}
	if p.Enabled {
		return mfa.RecoveryCodesResponse{}, mfa.ErrAlreadyEnabled
	}
	if p.Secret == "" {
		return mfa.RecoveryCodesResponse{}, mfa.ErrNotSetUp
	}
	if !totp.Validate(req.Code, p.Secret, s.now()) {
		s.record(ctx, userID, user.EventMFAFailed, map[string]any{"stage": "enable"})
		return mfa.RecoveryCodesResponse{}, mfa.ErrInvalidCode
	}

	codes, err := totp.NewRecoveryCodes(mfa.RecoveryCodeCount)
	if err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}

	now := s.now()
	p.Enabled = true
	p.RecoveryCodes = totp.HashRecoveryCodes(codes)
	p.LastUsedAt = &now
	if err := s.mfaRepo.Update(ctx, p); err != nil {
		return mfa.RecoveryCodesResponse{}, fmt.Errorf("failed to enable mfa: %w", err)
	}

	s.record(ctx, userID, user.EventMFAEnabled, nil)
	return mfa.RecoveryCodesResponse{RecoveryCodes: codes}, nil
}

// VerifyCode implements mfa.MFAService.
func (s *MFAServiceImpl) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return false, err
	}
	if !p.Enabled {
		return false, mfa.ErrNotEnabled
	}

	now := s.now()
	if totp.Validate(code, p.Secret, now) {
		p.LastUsedAt = &now
		if err := s.mfaRepo.Update(ctx, p); err != nil {
			return false, fmt.Errorf("failed to update mfa profile: %w", err)
		}
		return true, nil
	}

	remaining, ok := totp.ConsumeRecoveryCode(p.RecoveryCodes, code)
	if !ok {
		s.record(ctx, userID, user.EventMFAFailed, nil)
		return false, nil
	}

	p.RecoveryCodes = remaining
	p.LastUsedAt = &now
	if err := s.mfaRepo.Update(ctx, p); err != nil {
		return false, fmt.Errorf("failed to consume recovery code: %w", err)
	}
	s.record(ctx, userID, user.EventRecoveryCodeUsed, map[string]any{"remaining": len(remaining)})
	return true, nil
}

// Disable implements mfa.MFAService.
func (s *MFAServiceImpl) Disable(ctx context.Context, userID string, req mfa.PasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.checkPassword(ctx, userID, req.Password); err != nil {
		return err
	}

	p, err := s.profile(ctx, userID)
	if err != nil {
		return err
	}
	if !p.Enabled {
		return mfa.ErrNotEnabled
	}

	p.Enabled = false
	p.Secret = ""
	p.RecoveryCodes = nil
	if err := s.mfaRepo.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to disable mfa: %w", err)
	}

	s.record(ctx, userID, user.EventMFADisabled, nil)
	return nil
}

// RegenerateRecoveryCodes implements mfa.MFAService.
func (s *MFAServiceImpl) RegenerateRecoveryCodes(ctx context.Context, userID string, req mfa.PasswordRequest) (mfa.RecoveryCodesResponse, error) {
	if err := req.Validate(); err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}
	if err := s.checkPassword(ctx, userID, req.Password); err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}

	p, err := s.profile(ctx, userID)
	if err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}
	if !p.Enabled {
		return mfa.RecoveryCodesResponse{}, mfa.ErrNotEnabled
	}

	codes, err := totp.NewRecoveryCodes(mfa.RecoveryCodeCount)
	if err != nil {
		return mfa.RecoveryCodesResponse{}, err
	}
	p.RecoveryCodes = totp.HashRecoveryCodes(codes)
	if err := s.mfaRepo.Update(ctx, p); err != nil {
		return mfa.RecoveryCodesResponse{}, fmt.Errorf("failed to store recovery codes: %w", err)
	}

	s.record(ctx, userID, user.EventRecoveryRegenerated, nil)
	return mfa.RecoveryCodesResponse{RecoveryCodes: codes}, nil
}

// Status implements mfa.MFAService.
func (s *MFAServiceImpl) Status(ctx context.Context, userID string) (mfa.StatusResponse, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		if errors.Is(err, mfa.ErrNotSetUp) {
			return mfa.StatusResponse{}, nil
		}
		return mfa.StatusResponse{}, err
	}

	resp := mfa.StatusResponse{Enabled: p.Enabled, RecoveryCodesRemaining: len(p.RecoveryCodes)}
	if p.LastUsedAt != nil {
		at := p.LastUsedAt.Format(time.RFC3339)
		resp.LastUsedAt = &at
	}
	return resp, nil
}

// IsEnabled implements mfa.MFAService.
func (s *MFAServiceImpl) IsEnabled(ctx context.Context, userID string) (bool, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		if errors.Is(err, mfa.ErrNotSetUp) {
			return false, nil
		}
		return false, err
	}
	return p.Enabled, nil
}
