package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/notify"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
)

const defaultWorkspaceColor = "#3b82f6"

// CreateWorkspaceInput is the data for a new workspace.
type CreateWorkspaceInput struct {
	Name        string
	Description string
	Color       string
}

// UpdateWorkspaceInput holds the optional workspace fields to change.
type UpdateWorkspaceInput struct {
	Name        *string
	Description *string
	Color       *string
}

// InviteResult reports the stored invite and whether the e-mail went out.
type InviteResult struct {
	Invite    *model.WorkspaceInvite
	EmailSent bool
}

// WorkspaceService manages workspaces, their members, managers and invites.
type WorkspaceService interface {
	Create(ctx context.Context, p policy.Principal, in CreateWorkspaceInput) (*model.Workspace, error)
	Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Workspace, error)
	List(ctx context.Context, p policy.Principal) ([]model.Workspace, error)
	Update(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateWorkspaceInput) (*model.Workspace, error)
	Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error

	Invite(ctx context.Context, p policy.Principal, id uuid.UUID, email string, role model.WorkspaceRole) (*InviteResult, error)
	AcceptInvite(ctx context.Context, p policy.Principal, token string) (*model.Workspace, error)

	Members(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.WorkspaceMember, error)
	AddMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID, role model.WorkspaceRole) (*model.WorkspaceMember, error)
	UpdateMemberRole(ctx context.Context, p policy.Principal, id, userID uuid.UUID, role model.WorkspaceRole) error
	RemoveMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error

	Managers(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.User, error)
	AssignManager(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error
	RemoveManager(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error
}

type workspaceService struct {
	repo       repository.WorkspaceRepository
	users      repository.UserRepository
	notifier   *notify.Notifier
	jwtService *auth.JWTService
	profiles   profileCache
	guard      guard
	logger     *zap.Logger
	now        func() time.Time
}

// NewWorkspaceService creates a workspace service.
func NewWorkspaceService(
	repo repository.WorkspaceRepository,
	users repository.UserRepository,
	notifier *notify.Notifier,
	jwtService *auth.JWTService,
	cacheClient *cache.Client,
	logger *zap.Logger,
	rec metrics.Recorder,
) WorkspaceService {
	logger = orNop(logger).Named("workspace")
	return &workspaceService{
		repo:       repo,
		users:      users,
		notifier:   notifier,
		jwtService: jwtService,
		profiles:   profileCache{client: cacheClient},
		guard:      newGuard(logger, rec),
		logger:     logger,
		now:        time.Now,
	}
}

func validWorkspaceRole(role model.WorkspaceRole) bool {
	switch role {
	case model.WorkspaceRoleMember, model.WorkspaceRoleAdmin, model.WorkspaceRoleViewer:
		return true
	}
	return false
}

func requireAdmin(p policy.Principal) error {
	if !p.IsAdmin {
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *workspaceService) load(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	ws, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrWorkspaceNotFound)
	}
	return ws, nil
}

func (s *workspaceService) loadAndCheck(ctx context.Context, p policy.Principal, id uuid.UUID, a policy.Action) (*model.Workspace, error) {
	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(p, a, policy.Target{Workspace: ws}); err != nil {
		return nil, err
	}
	return ws, nil
}

// Create is reserved to the master admin.
func (s *workspaceService) Create(ctx context.Context, p policy.Principal, in CreateWorkspaceInput) (*model.Workspace, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("workspace name is required")
	}
	color := in.Color
	if color == "" {
		color = defaultWorkspaceColor
	}
	ws := &model.Workspace{
		ID:          uuid.New(),
		Name:        name,
		Description: in.Description,
		Color:       color,
	}
	if err := s.repo.Create(ctx, ws); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

func (s *workspaceService) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Workspace, error) {
	return s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceView)
}

func (s *workspaceService) List(ctx context.Context, p policy.Principal) ([]model.Workspace, error) {
	if p.IsAdmin {
		return s.repo.List(ctx)
	}
	return s.repo.ListForUser(ctx, p.UserID)
}

func (s *workspaceService) Update(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateWorkspaceInput) (*model.Workspace, error) {
	ws, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceUpdate)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationError("workspace name cannot be empty")
		}
		ws.Name = name
	}
	if in.Description != nil {
		ws.Description = *in.Description
	}
	if in.Color != nil && *in.Color != "" {
		ws.Color = *in.Color
	}
	if err := s.repo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("update workspace: %w", err)
	}
	return ws, nil
}

// Delete removes the workspace and everything under it in one transaction.
func (s *workspaceService) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	if _, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceDelete); err != nil {
		return err
	}
	managers, err := s.repo.ListManagers(ctx, id)
	if err != nil {
		return fmt.Errorf("list managers: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, apperrors.ErrWorkspaceNotFound)
	}
	for _, m := range managers {
		s.profiles.invalidate(ctx, m.ID)
	}
	s.logger.Info("workspace deleted", zap.Stringer("workspace_id", id), zap.Stringer("by", p.UserID))
	return nil
}

// Invite stores a signed invitation for an existing user and e-mails the link.
// Earlier pending invites of the same user to this workspace are replaced.
func (s *workspaceService) Invite(ctx context.Context, p policy.Principal, id uuid.UUID, email string, role model.WorkspaceRole) (*InviteResult, error) {
	if role == "" {
		role = model.WorkspaceRoleMember
	}
	if !validWorkspaceRole(role) {
		return nil, validationError("invalid workspace role %q", role)
	}
	ws, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceInvite)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	if _, ok := ws.Member(user.ID); ok {
		return nil, apperrors.ErrAlreadyMember
	}

	token, err := s.jwtService.GenerateInviteToken(user.ID, ws.ID, string(role))
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}
	if err := s.repo.DeleteInvitesFor(ctx, ws.ID, user.ID); err != nil {
		return nil, fmt.Errorf("delete previous invites: %w", err)
	}
	invite := &model.WorkspaceInvite{
		UserID:      user.ID,
		WorkspaceID: ws.ID,
		Token:       token,
		Role:        role,
		ExpiresAt:   s.now().Add(auth.InviteExpiry).UTC(),
	}
	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	sent := s.notifier.WorkspaceInvite(ctx, *user.Email, ws.Name, token)
	return &InviteResult{Invite: invite, EmailSent: sent}, nil
}

// AcceptInvite adds the invited user to the workspace. When the workspace has no
// non-admin member yet, the user also becomes its manager. The workspace row is
// locked so two concurrent accepts cannot both see zero non-admin members.
func (s *workspaceService) AcceptInvite(ctx context.Context, p policy.Principal, token string) (*model.Workspace, error) {
	if p.IsAdmin {
		return nil, errAdminNotUser
	}
	if _, err := s.jwtService.ValidatePurpose(token, auth.PurposeWorkspaceInvite); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrInviteExpired
		}
		return nil, apperrors.ErrInviteNotFound
	}

	invite, err := s.repo.FindInviteByToken(ctx, token)
	if err != nil {
		return nil, notFound(err, apperrors.ErrInviteNotFound)
	}
	if invite.UserID != p.UserID {
		return nil, apperrors.ErrForbidden
	}
	if invite.Expired(s.now()) {
		if err := s.repo.DeleteInvite(ctx, invite.ID); err != nil {
			s.logger.Warn("failed to delete expired invite", zap.Error(err))
		}
		return nil, apperrors.ErrInviteExpired
	}

	promoted := false
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.WorkspaceRepository) error {
		ws, err := repo.FindByIDForUpdate(ctx, invite.WorkspaceID)
		if err != nil {
			return notFound(err, apperrors.ErrWorkspaceNotFound)
		}
		if _, ok := ws.Member(p.UserID); ok {
			return apperrors.ErrAlreadyMember
		}

		promoted = ws.NonAdminMemberCount() == 0
		if err := repo.AddMember(ctx, &model.WorkspaceMember{
			WorkspaceID: ws.ID,
			UserID:      p.UserID,
			Role:        invite.Role,
		}); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		if promoted {
			if err := repo.AddManager(ctx, ws.ID, p.UserID); err != nil {
				return fmt.Errorf("add manager: %w", err)
			}
		}
		return repo.DeleteInvite(ctx, invite.ID)
	})
	if err != nil {
		return nil, err
	}

	if promoted {
		s.profiles.invalidate(ctx, p.UserID)
		s.logger.Info("first member promoted to workspace manager",
			zap.Stringer("workspace_id", invite.WorkspaceID), zap.Stringer("user_id", p.UserID))
	}
	return s.load(ctx, invite.WorkspaceID)
}

func (s *workspaceService) Members(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.WorkspaceMember, error) {
	if _, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceView); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, id)
}

// AddMember adds a user directly. Unlike AcceptInvite it never grants manager status.
func (s *workspaceService) AddMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID, role model.WorkspaceRole) (*model.WorkspaceMember, error) {
	if role == "" {
		role = model.WorkspaceRoleMember
	}
	if !validWorkspaceRole(role) {
		return nil, validationError("invalid workspace role %q", role)
	}
	ws, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceManageMembers)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	if _, ok := ws.Member(userID); ok {
		return nil, apperrors.ErrAlreadyMember
	}

	member := &model.WorkspaceMember{WorkspaceID: ws.ID, UserID: userID, Role: role}
	if err := s.repo.AddMember(ctx, member); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrAlreadyMember
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return member, nil
}

func (s *workspaceService) UpdateMemberRole(ctx context.Context, p policy.Principal, id, userID uuid.UUID, role model.WorkspaceRole) error {
	if !validWorkspaceRole(role) {
		return validationError("invalid workspace role %q", role)
	}
	if _, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceManageMembers); err != nil {
		return err
	}
	if err := s.repo.UpdateMemberRole(ctx, id, userID, role); err != nil {
		return notFound(err, apperrors.ErrNotMember)
	}
	return nil
}

func (s *workspaceService) RemoveMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	if _, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceManageMembers); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, id, userID); err != nil {
		return notFound(err, apperrors.ErrNotMember)
	}
	return nil
}

func (s *workspaceService) Managers(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.User, error) {
	if _, err := s.loadAndCheck(ctx, p, id, policy.ActionWorkspaceView); err != nil {
		return nil, err
	}
	return s.repo.ListManagers(ctx, id)
}

// AssignManager makes userID a manager of the workspace, adding them as a member first
// when needed. Master admin only.
func (s *workspaceService) AssignManager(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.WorkspaceRepository) error {
		ws, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, apperrors.ErrWorkspaceNotFound)
		}
		if _, ok := ws.Member(userID); !ok {
			if err := repo.AddMember(ctx, &model.WorkspaceMember{
				WorkspaceID: id,
				UserID:      userID,
				Role:        model.WorkspaceRoleMember,
			}); err != nil {
				return fmt.Errorf("add member: %w", err)
			}
		}
		return repo.AddManager(ctx, id, userID)
	})
	if err != nil {
		return err
	}
	s.profiles.invalidate(ctx, userID)
	return nil
}

// RemoveManager revokes manager status. Membership is kept. Master admin only.
func (s *workspaceService) RemoveManager(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.RemoveManager(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validationError("user is not a manager of this workspace")
		}
		return fmt.Errorf("remove manager: %w", err)
	}
	s.profiles.invalidate(ctx, userID)
	return nil
}
