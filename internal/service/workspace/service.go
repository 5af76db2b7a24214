package workspace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/fixtures"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
)

const (
	defaultColor    = "#6366f1"
	defaultProvider = "paystack"
	maxSlugLength   = 60
	logoURLExpiry   = 24 * time.Hour
)

type WorkspaceServiceImpl struct {
	db database.Transactor
	workspace.WorkspaceRepository
	categoryRepo expense.CategoryRepository
	reminderRepo reminder.ReminderRepository
	fileService  file.FileService
}

func NewWorkspaceService(
	db database.Transactor,
	workspaceRepository workspace.WorkspaceRepository,
	categoryRepository expense.CategoryRepository,
	reminderRepository reminder.ReminderRepository,
	fileService file.FileService,
) workspace.WorkspaceService {
	return &WorkspaceServiceImpl{
		db:                  db,
		WorkspaceRepository: workspaceRepository,
		categoryRepo:        categoryRepository,
		reminderRepo:        reminderRepository,
		fileService:         fileService,
	}
}

// Create implements workspace.WorkspaceService.
// Subtle: this method shadows the method (WorkspaceRepository).Create of WorkspaceServiceImpl.WorkspaceRepository.
func (s *WorkspaceServiceImpl) Create(ctx context.Context, ownerID, name string) (workspace.Workspace, error) {
	var created workspace.Workspace
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		slug, err := s.uniqueSlug(txCtx, name)
		if err != nil {
			return err
		}

		created, err = s.WorkspaceRepository.Create(txCtx, workspace.Workspace{
			Name:            strings.TrimSpace(name),
			Slug:            slug,
			OwnerID:         ownerID,
			PrimaryColor:    defaultColor,
			InvoicePrefix:   "INV",
			DefaultCurrency: "USD",
			PaymentProvider: defaultProvider,
		})
		if err != nil {
			if database.IsUniqueViolation(err) {
				return workspace.ErrSlugTaken
			}
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		if _, err := s.AddMember(txCtx, workspace.Member{
			WorkspaceID: created.ID,
			UserID:      ownerID,
			Role:        workspace.RoleOwner,
		}); err != nil {
			return fmt.Errorf("failed to add owner membership: %w", err)
		}

		return s.seedDefaults(txCtx, created.ID)
	})
	if err != nil {
		return workspace.Workspace{}, err
	}

	slog.Info("Workspace created", "workspace_id", created.ID, "owner_id", ownerID)
	return created, nil
}

// seedDefaults creates the expense categories and reminder rules of a new workspace
func (s *WorkspaceServiceImpl) seedDefaults(ctx context.Context, workspaceID string) error {
	if err := s.categoryRepo.CreateMany(ctx, fixtures.GetDefaultCategories(workspaceID)); err != nil {
		return fmt.Errorf("failed to seed expense categories: %w", err)
	}
	if err := s.reminderRepo.CreateMany(ctx, fixtures.GetDefaultReminderRules(workspaceID)); err != nil {
		return fmt.Errorf("failed to seed reminder rules: %w", err)
	}
	return nil
}

func (s *WorkspaceServiceImpl) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	for range 5 {
		suffix := make([]byte, 3)
		if _, err := rand.Read(suffix); err != nil {
			return "", fmt.Errorf("failed to generate slug: %w", err)
		}
		slug := base + "-" + hex.EncodeToString(suffix)

		exists, err := s.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
	}
	return "", workspace.ErrSlugTaken
}

// Slugify lowercases name, strips accents and joins words with dashes
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "workspace"
	}
	return slug
}

func (s *WorkspaceServiceImpl) get(ctx context.Context, workspaceID string) (workspace.Workspace, error) {
	ws, err := s.GetByID(ctx, workspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return workspace.Workspace{}, workspace.ErrWorkspaceNotFound
		}
		return workspace.Workspace{}, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

func (s *WorkspaceServiceImpl) toResponse(ctx context.Context, ws workspace.Workspace) workspace.WorkspaceResponse {
	resp := ws.ToResponse()
	if ws.LogoKey != nil && s.fileService != nil {
		if url, err := s.fileService.GetFileURL(ctx, *ws.LogoKey, logoURLExpiry); err == nil {
			resp.LogoURL = &url
		}
	}
	return resp
}

// Get implements workspace.WorkspaceService.
func (s *WorkspaceServiceImpl) Get(ctx context.Context, workspaceID string) (workspace.WorkspaceResponse, error) {
	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return workspace.WorkspaceResponse{}, err
	}
	return s.toResponse(ctx, ws), nil
}

// Update implements workspace.WorkspaceService.
// Subtle: this method shadows the method (WorkspaceRepository).Update of WorkspaceServiceImpl.WorkspaceRepository.
func (s *WorkspaceServiceImpl) Update(ctx context.Context, workspaceID string, req workspace.UpdateWorkspaceRequest) (workspace.WorkspaceResponse, error) {
	if err := req.Validate(); err != nil {
		return workspace.WorkspaceResponse{}, err
	}

	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return workspace.WorkspaceResponse{}, err
	}
	req.Apply(&ws)

	updated, err := s.WorkspaceRepository.Update(ctx, ws)
	if err != nil {
		if database.IsNotFound(err) {
			return workspace.WorkspaceResponse{}, workspace.ErrWorkspaceNotFound
		}
		return workspace.WorkspaceResponse{}, fmt.Errorf("failed to update workspace: %w", err)
	}
	return s.toResponse(ctx, updated), nil
}

// UploadLogo implements workspace.WorkspaceService.
func (s *WorkspaceServiceImpl) UploadLogo(ctx context.Context, workspaceID string, upload workspace.LogoUpload) (workspace.WorkspaceResponse, error) {
	if upload.Size > file.MaxLogoSize {
		return workspace.WorkspaceResponse{}, workspace.ErrLogoTooLarge
	}

	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return workspace.WorkspaceResponse{}, err
	}

	key, err := s.fileService.UploadLogo(ctx, workspaceID, upload.Reader, upload.FileName)
	if err != nil {
		return workspace.WorkspaceResponse{}, err
	}
	if err := s.UpdateLogo(ctx, workspaceID, &key); err != nil {
		_ = s.fileService.DeleteFile(ctx, key)
		return workspace.WorkspaceResponse{}, fmt.Errorf("failed to update workspace logo: %w", err)
	}

	if ws.LogoKey != nil {
		if err := s.fileService.DeleteFile(ctx, *ws.LogoKey); err != nil {
			slog.Warn("Failed to delete previous logo", "workspace_id", workspaceID, "error", err)
		}
	}

	ws.LogoKey = &key
	return s.toResponse(ctx, ws), nil
}

// ListMine implements workspace.WorkspaceService.
func (s *WorkspaceServiceImpl) ListMine(ctx context.Context, userID string) ([]workspace.WorkspaceResponse, error) {
	memberships, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	responses := make([]workspace.WorkspaceResponse, 0, len(memberships))
	for _, m := range memberships {
		resp := s.toResponse(ctx, m.Workspace)
		resp.Role = m.Role
		responses = append(responses, resp)
	}
	return responses, nil
}

// ==================== Members ====================

// GetMembership implements workspace.WorkspaceService.
func (s *WorkspaceServiceImpl) GetMembership(ctx context.Context, workspaceID, userID string) (workspace.Member, error) {
	member, err := s.GetMember(ctx, workspaceID, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return workspace.Member{}, workspace.ErrNotAMember
		}
		return workspace.Member{}, fmt.Errorf("failed to get membership: %w", err)
	}
	return member, nil
}

// ListMembers implements workspace.WorkspaceService.
// Subtle: this method shadows the method (WorkspaceRepository).ListMembers of WorkspaceServiceImpl.WorkspaceRepository.
func (s *WorkspaceServiceImpl) ListMembers(ctx context.Context, workspaceID string) ([]workspace.MemberResponse, error) {
	members, err := s.WorkspaceRepository.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	responses := make([]workspace.MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, m.ToResponse())
	}
	return responses, nil
}

// UpdateMemberRole implements workspace.WorkspaceService.
// Subtle: this method shadows the method (WorkspaceRepository).UpdateMemberRole of WorkspaceServiceImpl.WorkspaceRepository.
func (s *WorkspaceServiceImpl) UpdateMemberRole(ctx context.Context, workspaceID, targetUserID string, req workspace.UpdateMemberRoleRequest) error {
	if req.Role == workspace.RoleOwner {
		return workspace.ErrCannotAssignOwner
	}
	if err := req.Validate(); err != nil {
		return err
	}

	member, err := s.GetMembership(ctx, workspaceID, targetUserID)
	if err != nil {
		return err
	}
	if member.Role == workspace.RoleOwner {
		return workspace.ErrCannotChangeOwner
	}

	if err := s.WorkspaceRepository.UpdateMemberRole(ctx, workspaceID, targetUserID, req.Role); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return nil
}

// RemoveMember implements workspace.WorkspaceService.
// Subtle: this method shadows the method (WorkspaceRepository).RemoveMember of WorkspaceServiceImpl.WorkspaceRepository.
func (s *WorkspaceServiceImpl) RemoveMember(ctx context.Context, workspaceID, actorUserID, targetUserID string) error {
	member, err := s.GetMembership(ctx, workspaceID, targetUserID)
	if err != nil {
		return err
	}
	if member.Role == workspace.RoleOwner {
		return workspace.ErrCannotRemoveOwner
	}

	if err := s.WorkspaceRepository.RemoveMember(ctx, workspaceID, targetUserID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	slog.Info("Workspace member removed", "workspace_id", workspaceID, "user_id", targetUserID, "removed_by", actorUserID)
	return nil
}

// Leave implements workspace.WorkspaceService.
func (s *WorkspaceServiceImpl) Leave(ctx context.Context, workspaceID, userID string) error {
	member, err := s.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if member.Role == workspace.RoleOwner {
		return workspace.ErrOwnerCannotLeave
	}

	if err := s.WorkspaceRepository.RemoveMember(ctx, workspaceID, userID); err != nil {
		return fmt.Errorf("failed to leave workspace: %w", err)
	}
	return nil
}
