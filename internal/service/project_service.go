package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
)

// MemberInput names a user and the project role they get.
type MemberInput struct {
	UserID uuid.UUID
	Role   model.ProjectRole
}

// CreateProjectInput is the data for a new project.
type CreateProjectInput struct {
	Title       string
	Description string
	Status      model.ProjectStatus
	StartDate   *time.Time
	DueDate     *time.Time
	Members     []MemberInput
}

// UpdateProjectInput changes schedule fields. Title and description go through
// UpdateDetails, which has a stricter permission.
type UpdateProjectInput struct {
	Status    *model.ProjectStatus
	StartDate *time.Time
	DueDate   *time.Time
}

// UpdateProjectDetailsInput changes title and description.
type UpdateProjectDetailsInput struct {
	Title       *string
	Description *string
}

// ProjectService manages projects and project membership.
type ProjectService interface {
	Create(ctx context.Context, p policy.Principal, workspaceID uuid.UUID, in CreateProjectInput) (*model.Project, error)
	Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Project, error)
	ListByWorkspace(ctx context.Context, p policy.Principal, workspaceID uuid.UUID) ([]model.Project, error)
	Update(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateProjectInput) (*model.Project, error)
	UpdateDetails(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateProjectDetailsInput) (*model.Project, error)
	Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error

	AddMember(ctx context.Context, p policy.Principal, id uuid.UUID, in MemberInput) (*model.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, p policy.Principal, id uuid.UUID, in MemberInput) error
	RemoveMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error

	Activity(ctx context.Context, p policy.Principal, id uuid.UUID, limit int) ([]model.ActivityLog, error)
}

type projectService struct {
	repo       repository.ProjectRepository
	workspaces repository.WorkspaceRepository
	users      repository.UserRepository
	activity   ActivityLogger
	guard      guard
	logger     *zap.Logger
}

// NewProjectService creates a project service.
func NewProjectService(
	repo repository.ProjectRepository,
	workspaces repository.WorkspaceRepository,
	users repository.UserRepository,
	activity ActivityLogger,
	logger *zap.Logger,
	rec metrics.Recorder,
) ProjectService {
	logger = orNop(logger).Named("project")
	return &projectService{
		repo:       repo,
		workspaces: workspaces,
		users:      users,
		activity:   activity,
		guard:      newGuard(logger, rec),
		logger:     logger,
	}
}

func validProjectStatus(s model.ProjectStatus) bool {
	switch s {
	case model.ProjectStatusPlanning, model.ProjectStatusInProgress, model.ProjectStatusOnHold,
		model.ProjectStatusCompleted, model.ProjectStatusCancelled:
		return true
	}
	return false
}

// validProjectRole accepts only assignable roles; admin and owner are never assignable.
func validProjectRole(r model.ProjectRole) bool {
	switch r {
	case model.ProjectRoleManager, model.ProjectRoleContributor, model.ProjectRoleViewer:
		return true
	}
	return false
}

// scope loads a project with its members and, for view checks, its workspace.
func (s *projectService) scope(ctx context.Context, id uuid.UUID, withWorkspace bool) (policy.Target, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return policy.Target{}, notFound(err, apperrors.ErrProjectNotFound)
	}
	t := policy.Target{Project: project}
	if withWorkspace {
		ws, err := s.workspaces.FindByID(ctx, project.WorkspaceID)
		if err != nil {
			return policy.Target{}, notFound(err, apperrors.ErrWorkspaceNotFound)
		}
		t.Workspace = ws
	}
	return t, nil
}

func (s *projectService) authorize(ctx context.Context, p policy.Principal, id uuid.UUID, a policy.Action) (*model.Project, error) {
	t, err := s.scope(ctx, id, a == policy.ActionProjectView)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(p, a, t); err != nil {
		return nil, err
	}
	return t.Project, nil
}

// Create adds a project to the workspace. A non-admin creator becomes its manager.
func (s *projectService) Create(ctx context.Context, p policy.Principal, workspaceID uuid.UUID, in CreateProjectInput) (*model.Project, error) {
	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrWorkspaceNotFound)
	}
	if err := s.guard.check(p, policy.ActionProjectCreate, policy.Target{Workspace: ws}); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("project title is required")
	}
	status := in.Status
	if status == "" {
		status = model.ProjectStatusPlanning
	}
	if !validProjectStatus(status) {
		return nil, validationError("invalid project status %q", status)
	}
	if in.StartDate != nil && in.DueDate != nil && in.DueDate.Before(*in.StartDate) {
		return nil, validationError("due date must not be before start date")
	}

	project := &model.Project{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
	}
	if !p.IsAdmin {
		creator := p.UserID
		project.CreatedBy = &creator
	}

	seen := make(map[uuid.UUID]bool)
	if !p.IsAdmin {
		project.Members = append(project.Members, model.ProjectMember{UserID: p.UserID, Role: model.ProjectRoleManager})
		seen[p.UserID] = true
	}
	ids := make([]uuid.UUID, 0, len(in.Members))
	for _, m := range in.Members {
		if seen[m.UserID] {
			continue
		}
		role := m.Role
		if role == "" {
			role = model.ProjectRoleContributor
		}
		if !validProjectRole(role) {
			return nil, validationError("invalid project role %q", role)
		}
		seen[m.UserID] = true
		ids = append(ids, m.UserID)
		project.Members = append(project.Members, model.ProjectMember{UserID: m.UserID, Role: role})
	}
	if err := s.ensureUsersExist(ctx, ids); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.activity.Log(ctx, p.UserID, "created", model.ResourceProject, project.ID,
		fmt.Sprintf("created project %s", quote(project.Title)))
	return s.repo.FindByID(ctx, project.ID)
}

func (s *projectService) ensureUsersExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("find users: %w", err)
	}
	if len(users) != len(ids) {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (s *projectService) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Project, error) {
	return s.authorize(ctx, p, id, policy.ActionProjectView)
}

// ListByWorkspace returns the workspace's projects the principal may view.
func (s *projectService) ListByWorkspace(ctx context.Context, p policy.Principal, workspaceID uuid.UUID) ([]model.Project, error) {
	ws, err := s.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrWorkspaceNotFound)
	}
	projects, err := s.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	visible := make([]model.Project, 0, len(projects))
	for i := range projects {
		if policy.Can(p, policy.ActionProjectView, policy.Target{Workspace: ws, Project: &projects[i]}) {
			visible = append(visible, projects[i])
		}
	}
	if len(visible) == 0 {
		// nothing visible: report whether the workspace itself is off limits
		if err := s.guard.check(p, policy.ActionWorkspaceView, policy.Target{Workspace: ws}); err != nil {
			return nil, err
		}
	}
	return visible, nil
}

// Update changes status and dates, logging each change.
func (s *projectService) Update(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateProjectInput) (*model.Project, error) {
	project, err := s.authorize(ctx, p, id, policy.ActionProjectUpdate)
	if err != nil {
		return nil, err
	}

	var changes []string
	if in.Status != nil && *in.Status != project.Status {
		if !validProjectStatus(*in.Status) {
			return nil, validationError("invalid project status %q", *in.Status)
		}
		changes = append(changes, fmt.Sprintf("changed status from %s to %s", project.Status, *in.Status))
		project.Status = *in.Status
	}
	if in.StartDate != nil && !sameDate(project.StartDate, in.StartDate) {
		changes = append(changes, fmt.Sprintf("changed start date from %s to %s", formatDate(project.StartDate), formatDate(in.StartDate)))
		project.StartDate = in.StartDate
	}
	if in.DueDate != nil && !sameDate(project.DueDate, in.DueDate) {
		changes = append(changes, fmt.Sprintf("changed due date from %s to %s", formatDate(project.DueDate), formatDate(in.DueDate)))
		project.DueDate = in.DueDate
	}
	if project.StartDate != nil && project.DueDate != nil && project.DueDate.Before(*project.StartDate) {
		return nil, validationError("due date must not be before start date")
	}
	if len(changes) == 0 {
		return project, nil
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	for _, c := range changes {
		s.activity.Log(ctx, p.UserID, "updated", model.ResourceProject, project.ID, c)
	}
	return project, nil
}

// UpdateDetails changes title and description. Project managers may not.
func (s *projectService) UpdateDetails(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateProjectDetailsInput) (*model.Project, error) {
	project, err := s.authorize(ctx, p, id, policy.ActionProjectUpdateDetails)
	if err != nil {
		return nil, err
	}

	var changes []string
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationError("project title cannot be empty")
		}
		if title != project.Title {
			changes = append(changes, fmt.Sprintf("renamed project from %s to %s", quote(project.Title), quote(title)))
			project.Title = title
		}
	}
	if in.Description != nil && *in.Description != project.Description {
		changes = append(changes, "updated the description")
		project.Description = *in.Description
	}
	if len(changes) == 0 {
		return project, nil
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	for _, c := range changes {
		s.activity.Log(ctx, p.UserID, "updated", model.ResourceProject, project.ID, c)
	}
	return project, nil
}

// Delete removes the project with its tasks, comments and memberships atomically.
func (s *projectService) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	if _, err := s.authorize(ctx, p, id, policy.ActionProjectDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, apperrors.ErrProjectNotFound)
	}
	s.logger.Info("project deleted", zap.Stringer("project_id", id), zap.Stringer("by", p.UserID))
	return nil
}

func (s *projectService) AddMember(ctx context.Context, p policy.Principal, id uuid.UUID, in MemberInput) (*model.ProjectMember, error) {
	role := in.Role
	if role == "" {
		role = model.ProjectRoleContributor
	}
	if !validProjectRole(role) {
		return nil, validationError("invalid project role %q", role)
	}
	project, err := s.authorize(ctx, p, id, policy.ActionProjectManageMembers)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, in.UserID); err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	if _, ok := project.Member(in.UserID); ok {
		return nil, apperrors.ErrAlreadyMember
	}

	member := &model.ProjectMember{ProjectID: project.ID, UserID: in.UserID, Role: role}
	if err := s.repo.AddMember(ctx, member); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrAlreadyMember
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return member, nil
}

func (s *projectService) UpdateMemberRole(ctx context.Context, p policy.Principal, id uuid.UUID, in MemberInput) error {
	if !validProjectRole(in.Role) {
		return validationError("invalid project role %q", in.Role)
	}
	if _, err := s.authorize(ctx, p, id, policy.ActionProjectManageMembers); err != nil {
		return err
	}
	if err := s.repo.UpdateMemberRole(ctx, id, in.UserID, in.Role); err != nil {
		return notFound(err, apperrors.ErrNotMember)
	}
	return nil
}

func (s *projectService) RemoveMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	if _, err := s.authorize(ctx, p, id, policy.ActionProjectManageMembers); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, id, userID); err != nil {
		return notFound(err, apperrors.ErrNotMember)
	}
	return nil
}

func (s *projectService) Activity(ctx context.Context, p policy.Principal, id uuid.UUID, limit int) ([]model.ActivityLog, error) {
	if _, err := s.authorize(ctx, p, id, policy.ActionProjectView); err != nil {
		return nil, err
	}
	return s.activity.List(ctx, model.ResourceProject, id, limit)
}
