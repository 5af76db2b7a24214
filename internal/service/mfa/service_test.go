package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/mfa"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	totp "github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/mfa"
)

type fakeUserRepo struct {
	user.UserRepository
	users map[string]user.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, pgx.ErrNoRows
	}
	return u, nil
}

type fakeMFARepo struct {
	profiles map[string]user.MFAProfile
}

func (f *fakeMFARepo) Create(_ context.Context, p user.MFAProfile) error {
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeMFARepo) Get(_ context.Context, userID string) (user.MFAProfile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return user.MFAProfile{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeMFARepo) Update(_ context.Context, p user.MFAProfile) error {
	f.profiles[p.UserID] = p
	return nil
}

type fakeEventRepo struct {
	user.SecurityEventRepository
	events []string
}

func (f *fakeEventRepo) Create(_ context.Context, e user.SecurityEvent) error {
	f.events = append(f.events, e.EventType)
	return nil
}

func newTestService(t *testing.T) (*MFAServiceImpl, *fakeMFARepo, *fakeEventRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)

	users := &fakeUserRepo{users: map[string]user.User{
		"u1": {ID: "u1", Email: "ada@example.com", PasswordHash: &h},
	}}
	mfaRepo := &fakeMFARepo{profiles: map[string]user.MFAProfile{}}
	events := &fakeEventRepo{}

	svc := NewMFAService(users, mfaRepo, events).(*MFAServiceImpl)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, mfaRepo, events
}

func enable(t *testing.T, svc *MFAServiceImpl) (string, []string) {
	t.Helper()
	setup, err := svc.Setup(context.Background(), "u1")
	require.NoError(t, err)

	code, err := totp.Code(setup.Secret, svc.now())
	require.NoError(t, err)
	resp, err := svc.VerifyAndEnable(context.Background(), "u1", mfa.CodeRequest{Code: code})
	require.NoError(t, err)
	return setup.Secret, resp.RecoveryCodes
}

func TestSetupAndEnable(t *testing.T) {
	svc, repo, events := newTestService(t)
	ctx := context.Background()

	setup, err := svc.Setup(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")

	enabled, err := svc.IsEnabled(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, enabled, "setup alone does not enable mfa")

	_, err = svc.VerifyAndEnable(ctx, "u1", mfa.CodeRequest{Code: "000000"})
	assert.ErrorIs(t, err, mfa.ErrInvalidCode)

	code, err := totp.Code(setup.Secret, svc.now())
	require.NoError(t, err)
	resp, err := svc.VerifyAndEnable(ctx, "u1", mfa.CodeRequest{Code: code})
	require.NoError(t, err)
	assert.Len(t, resp.RecoveryCodes, mfa.RecoveryCodeCount)

	stored := repo.profiles["u1"]
	assert.True(t, stored.Enabled)
	assert.NotContains(t, stored.RecoveryCodes, resp.RecoveryCodes[0], "recovery codes are stored hashed")
	assert.Contains(t, events.events, user.EventMFAEnabled)

	_, err = svc.Setup(ctx, "u1")
	assert.ErrorIs(t, err, mfa.ErrAlreadyEnabled)
}

func TestVerifyAndEnable_WithoutSetup(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.VerifyAndEnable(context.Background(), "u1", mfa.CodeRequest{Code: "123456"})
	assert.ErrorIs(t, err, mfa.ErrNotSetUp)
}

func TestVerifyCode(t *testing.T) {
	svc, repo, events := newTestService(t)
	ctx := context.Background()
	secret, codes := enable(t, svc)

	code, err := totp.Code(secret, svc.now())
	require.NoError(t, err)
	ok, err := svc.VerifyCode(ctx, "u1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyCode(ctx, "u1", codes[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, repo.profiles["u1"].RecoveryCodes, mfa.RecoveryCodeCount-1)
	assert.Contains(t, events.events, user.EventRecoveryCodeUsed)

	ok, err = svc.VerifyCode(ctx, "u1", codes[0])
	require.NoError(t, err)
	assert.False(t, ok, "a recovery code works only once")

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, mfa.RecoveryCodeCount-1, status.RecoveryCodesRemaining)
}

func TestDisable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	enable(t, svc)

	err := svc.Disable(ctx, "u1", mfa.PasswordRequest{Password: "wrong"})
	assert.ErrorIs(t, err, mfa.ErrInvalidPassword)

	require.NoError(t, svc.Disable(ctx, "u1", mfa.PasswordRequest{Password: "correct-horse"}))
	assert.False(t, repo.profiles["u1"].Enabled)
	assert.Empty(t, repo.profiles["u1"].Secret)

	err = svc.Disable(ctx, "u1", mfa.PasswordRequest{Password: "correct-horse"})
	assert.ErrorIs(t, err, mfa.ErrNotEnabled)
}

func TestRegenerateRecoveryCodes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, old := enable(t, svc)

	resp, err := svc.RegenerateRecoveryCodes(ctx, "u1", mfa.PasswordRequest{Password: "correct-horse"})
	require.NoError(t, err)
	assert.Len(t, resp.RecoveryCodes, mfa.RecoveryCodeCount)

	ok, err := svc.VerifyCode(ctx, "u1", old[0])
	require.NoError(t, err)
	assert.False(t, ok, "old codes are invalidated")
}

func TestStatus_NoProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	status, err := svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
}
