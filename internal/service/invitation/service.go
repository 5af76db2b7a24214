package invitation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invitation"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

const tokenBytes = 32

type InvitationServiceImpl struct {
	db database.Transactor
	invitation.InvitationRepository
	workspaceRepo workspace.WorkspaceRepository
	userRepo      user.UserRepository
	emailService  email.EmailService
	baseURL       string
	expiry        time.Duration
	now           func() time.Time
}

// NewInvitationService builds the service. Links are baseURL + "/" + token.
func NewInvitationService(
	db database.Transactor,
	invitationRepository invitation.InvitationRepository,
	workspaceRepository workspace.WorkspaceRepository,
	userRepository user.UserRepository,
	emailService email.EmailService,
	baseURL string,
	expiryDays int,
) invitation.InvitationService {
	expiry := invitation.DefaultExpiry
	if expiryDays > 0 {
		expiry = time.Duration(expiryDays) * 24 * time.Hour
	}
	return &InvitationServiceImpl{
		db:                   db,
		InvitationRepository: invitationRepository,
		workspaceRepo:        workspaceRepository,
		userRepo:             userRepository,
		emailService:         emailService,
		baseURL:              strings.TrimRight(baseURL, "/"),
		expiry:               expiry,
		now:                  time.Now,
	}
}

// Create implements invitation.InvitationService.
func (s *InvitationServiceImpl) Create(ctx context.Context, workspaceID, inviterID string, req invitation.CreateRequest) (invitation.InvitationResponse, error) {
	if req.Role == workspace.RoleOwner {
		return invitation.InvitationResponse{}, invitation.ErrInviteOwnerRole
	}
	if err := req.Validate(); err != nil {
		return invitation.InvitationResponse{}, err
	}

	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return invitation.InvitationResponse{}, workspace.ErrWorkspaceNotFound
		}
		return invitation.InvitationResponse{}, fmt.Errorf("failed to get workspace: %w", err)
	}

	// Existing users who already belong to the workspace cannot be invited again
	if existing, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		if _, err := s.workspaceRepo.GetMember(ctx, workspaceID, existing.ID); err == nil {
			return invitation.InvitationResponse{}, workspace.ErrAlreadyMember
		} else if !database.IsNotFound(err) {
			return invitation.InvitationResponse{}, fmt.Errorf("failed to check membership: %w", err)
		}
	} else if !database.IsNotFound(err) {
		return invitation.InvitationResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	inviterName := s.inviterName(ctx, inviterID)

	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return invitation.InvitationResponse{}, err
	}

	now := s.now()
	var created invitation.Invitation
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		revoked, err := s.InvitationRepository.RevokePendingByEmail(txCtx, workspaceID, req.Email, now)
		if err != nil {
			return err
		}
		if revoked > 0 {
			slog.Info("Revoked older pending invitations", "workspace_id", workspaceID, "count", revoked)
		}

		created, err = s.InvitationRepository.Create(txCtx, invitation.Invitation{
			WorkspaceID: workspaceID,
			InvitedBy:   inviterID,
			Email:       req.Email,
			Role:        req.Role,
			Token:       token,
			Status:      invitation.StatusPending,
			ExpiresAt:   now.Add(s.expiry),
		})
		if err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return invitation.InvitationResponse{}, err
	}

	s.send(ws, inviterName, created)
	return created.ToResponse(inviterName), nil
}

func (s *InvitationServiceImpl) inviterName(ctx context.Context, inviterID string) string {
	inviter, err := s.userRepo.GetByID(ctx, inviterID)
	if err != nil {
		slog.Warn("Failed to load inviter", "user_id", inviterID, "error", err)
		return ""
	}
	return inviter.FullName()
}

func (s *InvitationServiceImpl) send(ws workspace.Workspace, inviterName string, inv invitation.Invitation) {
	err := s.emailService.SendInvitation(inv.Email, email.InvitationEmail{
		Branding:      email.Branding{BusinessName: ws.DisplayName(), BrandColor: ws.PrimaryColor},
		InviterName:   inviterName,
		WorkspaceName: ws.Name,
		Role:          string(inv.Role),
		Link:          s.baseURL + "/" + inv.Token,
		ExpiresAt:     inv.ExpiresAt.UTC().Format("Jan 2, 2006"),
	})
	if err != nil {
		slog.Error("Failed to send invitation email", "invitation_id", inv.ID, "error", err)
	}
}

// List implements invitation.InvitationService.
func (s *InvitationServiceImpl) List(ctx context.Context, workspaceID string, status *invitation.Status) ([]invitation.InvitationResponse, error) {
	invitations, err := s.InvitationRepository.ListByWorkspace(ctx, workspaceID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	resp := make([]invitation.InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		resp = append(resp, inv.ToResponse(inv.InviterName))
	}
	return resp, nil
}

func (s *InvitationServiceImpl) get(ctx context.Context, workspaceID, id string) (invitation.Invitation, error) {
	inv, err := s.InvitationRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return invitation.Invitation{}, invitation.ErrInvitationNotFound
		}
		return invitation.Invitation{}, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// Revoke implements invitation.InvitationService.
func (s *InvitationServiceImpl) Revoke(ctx context.Context, workspaceID, id string) error {
	inv, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return err
	}
	switch inv.Status {
	case invitation.StatusAccepted:
		return invitation.ErrCannotRevokeAccepted
	case invitation.StatusPending:
	default:
		return invitation.ErrNotPending
	}

	if err := s.InvitationRepository.MarkRevoked(ctx, inv.ID, s.now()); err != nil {
		if database.IsNotFound(err) {
			return invitation.ErrNotPending
		}
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	return nil
}

// Resend implements invitation.InvitationService.
func (s *InvitationServiceImpl) Resend(ctx context.Context, workspaceID, id string) (invitation.InvitationResponse, error) {
	inv, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return invitation.InvitationResponse{}, err
	}
	// Expired but still pending invitations may be resent
	if inv.Status != invitation.StatusPending {
		return invitation.InvitationResponse{}, invitation.ErrNotPending
	}

	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return invitation.InvitationResponse{}, fmt.Errorf("failed to get workspace: %w", err)
	}

	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return invitation.InvitationResponse{}, err
	}
	inv.Token = token
	inv.ExpiresAt = s.now().Add(s.expiry)
	if err := s.InvitationRepository.UpdateToken(ctx, inv.ID, inv.Token, inv.ExpiresAt); err != nil {
		if database.IsNotFound(err) {
			return invitation.InvitationResponse{}, invitation.ErrNotPending
		}
		return invitation.InvitationResponse{}, fmt.Errorf("failed to refresh invitation: %w", err)
	}

	inviterName := s.inviterName(ctx, inv.InvitedBy)
	s.send(ws, inviterName, inv)
	return inv.ToResponse(inviterName), nil
}

// lookup loads an invitation by token and expires it in place when its time has passed
func (s *InvitationServiceImpl) lookup(ctx context.Context, token string) (invitation.InvitationWithDetails, error) {
	inv, err := s.InvitationRepository.GetByTokenWithDetails(ctx, token)
	if err != nil {
		if database.IsNotFound(err) {
			return invitation.InvitationWithDetails{}, invitation.ErrInvitationNotFound
		}
		return invitation.InvitationWithDetails{}, fmt.Errorf("failed to get invitation: %w", err)
	}

	if inv.Status == invitation.StatusPending && inv.IsExpired(s.now()) {
		if err := s.InvitationRepository.MarkExpired(ctx, inv.ID); err != nil {
			slog.Warn("Failed to mark invitation expired", "invitation_id", inv.ID, "error", err)
		}
		inv.Status = invitation.StatusExpired
	}
	return inv, nil
}

// GetByToken implements invitation.InvitationService.
func (s *InvitationServiceImpl) GetByToken(ctx context.Context, token string) (invitation.InvitationDetailResponse, error) {
	inv, err := s.lookup(ctx, token)
	if err != nil {
		return invitation.InvitationDetailResponse{}, err
	}
	return inv.ToDetailResponse(s.now()), nil
}

// ListMyInvitations implements invitation.InvitationService.
func (s *InvitationServiceImpl) ListMyInvitations(ctx context.Context, emailAddr string) ([]invitation.InvitationDetailResponse, error) {
	invitations, err := s.InvitationRepository.ListPendingByEmail(ctx, strings.ToLower(emailAddr))
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	now := s.now()
	resp := make([]invitation.InvitationDetailResponse, 0, len(invitations))
	for _, inv := range invitations {
		resp = append(resp, inv.ToDetailResponse(now))
	}
	return resp, nil
}

// Accept implements invitation.InvitationService.
func (s *InvitationServiceImpl) Accept(ctx context.Context, token, userID, userEmail string) (invitation.AcceptResponse, error) {
	inv, err := s.lookup(ctx, token)
	if err != nil {
		return invitation.AcceptResponse{}, err
	}

	switch inv.Status {
	case invitation.StatusAccepted:
		return invitation.AcceptResponse{}, invitation.ErrInvitationAlreadyUsed
	case invitation.StatusRevoked:
		return invitation.AcceptResponse{}, invitation.ErrInvitationRevoked
	case invitation.StatusExpired:
		return invitation.AcceptResponse{}, invitation.ErrInvitationExpired
	}

	if !strings.EqualFold(strings.TrimSpace(userEmail), inv.Email) {
		return invitation.AcceptResponse{}, invitation.ErrEmailMismatch
	}

	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.workspaceRepo.GetMember(txCtx, inv.WorkspaceID, userID); err == nil {
			return workspace.ErrAlreadyMember
		} else if !database.IsNotFound(err) {
			return fmt.Errorf("failed to check membership: %w", err)
		}

		if _, err := s.workspaceRepo.AddMember(txCtx, workspace.Member{
			WorkspaceID: inv.WorkspaceID,
			UserID:      userID,
			Role:        inv.Role,
		}); err != nil {
			if database.IsUniqueViolation(err) {
				return workspace.ErrAlreadyMember
			}
			return fmt.Errorf("failed to add member: %w", err)
		}

		if err := s.InvitationRepository.MarkAccepted(txCtx, inv.ID, s.now()); err != nil {
			if database.IsNotFound(err) {
				return invitation.ErrInvitationAlreadyUsed
			}
			return fmt.Errorf("failed to accept invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return invitation.AcceptResponse{}, err
	}

	slog.Info("Invitation accepted", "invitation_id", inv.ID, "workspace_id", inv.WorkspaceID, "user_id", userID)
	return invitation.AcceptResponse{
		Message:       "invitation accepted",
		WorkspaceID:   inv.WorkspaceID,
		WorkspaceName: inv.WorkspaceName,
		Role:          inv.Role,
	}, nil
}

// CleanupExpired implements invitation.InvitationService.
func (s *InvitationServiceImpl) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.InvitationRepository.ExpirePending(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Expired pending invitations", "count", n)
	}
	return n, nil
}
