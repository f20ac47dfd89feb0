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

// CreateTaskInput is the data for a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      model.TaskStatus
	Priority    model.TaskPriority
	DueDate     *time.Time
	Assignees   []uuid.UUID
}

// UpdateTaskInput holds the optional task fields to change. A non-nil Assignees
// replaces the whole assignee set.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *model.TaskStatus
	Priority     *model.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
	Assignees    *[]uuid.UUID
}

// UpdateSubtaskInput holds the optional subtask fields to change.
type UpdateSubtaskInput struct {
	Title     *string
	Completed *bool
}

// TaskService manages tasks, subtasks, watchers and comments.
type TaskService interface {
	Create(ctx context.Context, p policy.Principal, projectID uuid.UUID, in CreateTaskInput) (*model.Task, error)
	Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Task, error)
	ListByProject(ctx context.Context, p policy.Principal, projectID uuid.UUID, includeArchived bool) ([]model.Task, error)
	Update(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error

	AddSubtask(ctx context.Context, p policy.Principal, id uuid.UUID, title string) (*model.Subtask, error)
	UpdateSubtask(ctx context.Context, p policy.Principal, id, subtaskID uuid.UUID, in UpdateSubtaskInput) (*model.Subtask, error)
	ToggleWatch(ctx context.Context, p policy.Principal, id uuid.UUID) (bool, error)
	ToggleArchive(ctx context.Context, p policy.Principal, id uuid.UUID) (bool, error)

	Comments(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.Comment, error)
	AddComment(ctx context.Context, p policy.Principal, id uuid.UUID, text string) (*model.Comment, error)
	DeleteComment(ctx context.Context, p policy.Principal, commentID uuid.UUID) error

	Activity(ctx context.Context, p policy.Principal, id uuid.UUID, limit int) ([]model.ActivityLog, error)
}

type taskService struct {
	repo       repository.TaskRepository
	comments   repository.CommentRepository
	projects   repository.ProjectRepository
	workspaces repository.WorkspaceRepository
	activity   ActivityLogger
	guard      guard
	logger     *zap.Logger
}

// NewTaskService creates a task service.
func NewTaskService(
	repo repository.TaskRepository,
	comments repository.CommentRepository,
	projects repository.ProjectRepository,
	workspaces repository.WorkspaceRepository,
	activity ActivityLogger,
	logger *zap.Logger,
	rec metrics.Recorder,
) TaskService {
	logger = orNop(logger).Named("task")
	return &taskService{
		repo:       repo,
		comments:   comments,
		projects:   projects,
		workspaces: workspaces,
		activity:   activity,
		guard:      newGuard(logger, rec),
		logger:     logger,
	}
}

func validTaskStatus(s model.TaskStatus) bool {
	switch s {
	case model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusReview, model.TaskStatusDone:
		return true
	}
	return false
}

func validTaskPriority(p model.TaskPriority) bool {
	switch p {
	case model.TaskPriorityLow, model.TaskPriorityMedium, model.TaskPriorityHigh:
		return true
	}
	return false
}

func isViewAction(a policy.Action) bool {
	return a == policy.ActionTaskView || a == policy.ActionProjectView
}

// target builds the policy target for a project, loading the workspace for view checks.
func (s *taskService) target(ctx context.Context, projectID uuid.UUID, a policy.Action) (policy.Target, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return policy.Target{}, notFound(err, apperrors.ErrProjectNotFound)
	}
	t := policy.Target{Project: project}
	if isViewAction(a) {
		ws, err := s.workspaces.FindByID(ctx, project.WorkspaceID)
		if err != nil {
			return policy.Target{}, notFound(err, apperrors.ErrWorkspaceNotFound)
		}
		t.Workspace = ws
	}
	return t, nil
}

// authorize loads the task and its project and checks a against them.
func (s *taskService) authorize(ctx context.Context, p policy.Principal, id uuid.UUID, a policy.Action) (*model.Task, policy.Target, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, policy.Target{}, notFound(err, apperrors.ErrTaskNotFound)
	}
	t, err := s.target(ctx, task.ProjectID, a)
	if err != nil {
		return nil, policy.Target{}, err
	}
	if err := s.guard.check(p, a, t); err != nil {
		return nil, policy.Target{}, err
	}
	return task, t, nil
}

func (s *taskService) log(ctx context.Context, p policy.Principal, taskID uuid.UUID, action, details string) {
	s.activity.Log(ctx, p.UserID, action, model.ResourceTask, taskID, details)
}

// checkAssignees requires every assignee to be a member of the project.
func checkAssignees(project *model.Project, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := project.Member(id); !ok {
			return validationError("assignee %s is not a member of this project", id)
		}
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, p policy.Principal, projectID uuid.UUID, in CreateTaskInput) (*model.Task, error) {
	t, err := s.target(ctx, projectID, policy.ActionTaskCreate)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(p, policy.ActionTaskCreate, t); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("task title is required")
	}
	status := in.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !validTaskStatus(status) {
		return nil, validationError("invalid task status %q", status)
	}
	priority := in.Priority
	if priority == "" {
		priority = model.TaskPriorityMedium
	}
	if !validTaskPriority(priority) {
		return nil, validationError("invalid task priority %q", priority)
	}
	if err := checkAssignees(t.Project, in.Assignees); err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
	}
	if !p.IsAdmin {
		creator := p.UserID
		task.CreatedBy = &creator
	}
	if err := s.repo.Create(ctx, task, in.Assignees); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.log(ctx, p, task.ID, "created", fmt.Sprintf("created task %s", quote(task.Title)))
	return s.repo.FindByID(ctx, task.ID)
}

func (s *taskService) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Task, error) {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskView)
	return task, err
}

func (s *taskService) ListByProject(ctx context.Context, p policy.Principal, projectID uuid.UUID, includeArchived bool) ([]model.Task, error) {
	t, err := s.target(ctx, projectID, policy.ActionTaskView)
	if err != nil {
		return nil, err
	}
	if err := s.guard.check(p, policy.ActionTaskView, t); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID, includeArchived)
}

// Update applies field changes and logs one activity entry per changed field.
func (s *taskService) Update(ctx context.Context, p policy.Principal, id uuid.UUID, in UpdateTaskInput) (*model.Task, error) {
	task, t, err := s.authorize(ctx, p, id, policy.ActionTaskUpdate)
	if err != nil {
		return nil, err
	}

	var changes []string
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationError("task title cannot be empty")
		}
		if title != task.Title {
			changes = append(changes, fmt.Sprintf("changed title from %s to %s", quote(task.Title), quote(title)))
			task.Title = title
		}
	}
	if in.Description != nil && *in.Description != task.Description {
		changes = append(changes, "updated the description")
		task.Description = *in.Description
	}
	if in.Status != nil && *in.Status != task.Status {
		if !validTaskStatus(*in.Status) {
			return nil, validationError("invalid task status %q", *in.Status)
		}
		changes = append(changes, fmt.Sprintf("changed status from %s to %s", task.Status, *in.Status))
		task.Status = *in.Status
	}
	if in.Priority != nil && *in.Priority != task.Priority {
		if !validTaskPriority(*in.Priority) {
			return nil, validationError("invalid task priority %q", *in.Priority)
		}
		changes = append(changes, fmt.Sprintf("changed priority from %s to %s", task.Priority, *in.Priority))
		task.Priority = *in.Priority
	}
	switch {
	case in.ClearDueDate && task.DueDate != nil:
		changes = append(changes, fmt.Sprintf("removed due date %s", formatDate(task.DueDate)))
		task.DueDate = nil
	case in.DueDate != nil && !sameDate(task.DueDate, in.DueDate):
		changes = append(changes, fmt.Sprintf("changed due date from %s to %s", formatDate(task.DueDate), formatDate(in.DueDate)))
		task.DueDate = in.DueDate
	}

	var assigneeChange string
	if in.Assignees != nil {
		if err := checkAssignees(t.Project, *in.Assignees); err != nil {
			return nil, err
		}
		assigneeChange = describeAssigneeChange(task.Assignees, *in.Assignees)
	}

	if len(changes) > 0 {
		if err := s.repo.Update(ctx, task); err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
	}
	if assigneeChange != "" {
		if err := s.repo.ReplaceAssignees(ctx, task.ID, *in.Assignees); err != nil {
			return nil, fmt.Errorf("replace assignees: %w", err)
		}
		changes = append(changes, assigneeChange)
	}

	for _, c := range changes {
		s.log(ctx, p, task.ID, "updated", c)
	}
	return s.repo.FindByID(ctx, task.ID)
}

// describeAssigneeChange returns "" when the sets are equal.
func describeAssigneeChange(current []model.User, next []uuid.UUID) string {
	before := make(map[uuid.UUID]bool, len(current))
	for _, u := range current {
		before[u.ID] = true
	}
	after := make(map[uuid.UUID]bool, len(next))
	for _, id := range next {
		after[id] = true
	}

	var added, removed int
	for id := range after {
		if !before[id] {
			added++
		}
	}
	for id := range before {
		if !after[id] {
			removed++
		}
	}
	if added == 0 && removed == 0 {
		return ""
	}
	parts := make([]string, 0, 2)
	if added > 0 {
		parts = append(parts, fmt.Sprintf("assigned %d user(s)", added))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("unassigned %d user(s)", removed))
	}
	return strings.Join(parts, " and ")
}

// Delete removes the task with its subtasks, comments, assignees and watchers atomically.
func (s *taskService) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskDelete)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, apperrors.ErrTaskNotFound)
	}
	s.logger.Info("task deleted", zap.Stringer("task_id", id), zap.Stringer("project_id", task.ProjectID))
	return nil
}

func (s *taskService) AddSubtask(ctx context.Context, p policy.Principal, id uuid.UUID, title string) (*model.Subtask, error) {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskAddSubtask)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("subtask title is required")
	}
	subtask := &model.Subtask{TaskID: task.ID, Title: title}
	if err := s.repo.CreateSubtask(ctx, subtask); err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	s.log(ctx, p, task.ID, "added_subtask", fmt.Sprintf("added subtask %s", quote(title)))
	return subtask, nil
}

func (s *taskService) UpdateSubtask(ctx context.Context, p policy.Principal, id, subtaskID uuid.UUID, in UpdateSubtaskInput) (*model.Subtask, error) {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskUpdateSubtask)
	if err != nil {
		return nil, err
	}
	subtask, err := s.repo.FindSubtask(ctx, task.ID, subtaskID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrSubtaskNotFound)
	}

	var changes []string
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationError("subtask title cannot be empty")
		}
		if title != subtask.Title {
			changes = append(changes, fmt.Sprintf("renamed subtask %s to %s", quote(subtask.Title), quote(title)))
			subtask.Title = title
		}
	}
	if in.Completed != nil && *in.Completed != subtask.Completed {
		subtask.Completed = *in.Completed
		state := "incomplete"
		if subtask.Completed {
			state = "completed"
		}
		changes = append(changes, fmt.Sprintf("marked subtask %s as %s", quote(subtask.Title), state))
	}
	if len(changes) == 0 {
		return subtask, nil
	}

	if err := s.repo.UpdateSubtask(ctx, subtask); err != nil {
		return nil, fmt.Errorf("update subtask: %w", err)
	}
	for _, c := range changes {
		s.log(ctx, p, task.ID, "updated_subtask", c)
	}
	return subtask, nil
}

// ToggleWatch flips whether the principal watches the task and reports the new state.
func (s *taskService) ToggleWatch(ctx context.Context, p policy.Principal, id uuid.UUID) (bool, error) {
	if p.IsAdmin {
		return false, errAdminNotUser
	}
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskWatch)
	if err != nil {
		return false, err
	}

	if task.IsWatchedBy(p.UserID) {
		if err := s.repo.RemoveWatcher(ctx, task.ID, p.UserID); err != nil {
			return false, fmt.Errorf("remove watcher: %w", err)
		}
		s.log(ctx, p, task.ID, "unwatched", "stopped watching the task")
		return false, nil
	}
	if err := s.repo.AddWatcher(ctx, task.ID, p.UserID); err != nil {
		return false, fmt.Errorf("add watcher: %w", err)
	}
	s.log(ctx, p, task.ID, "watched", "started watching the task")
	return true, nil
}

// ToggleArchive flips the archived flag and reports the new state.
func (s *taskService) ToggleArchive(ctx context.Context, p policy.Principal, id uuid.UUID) (bool, error) {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskArchive)
	if err != nil {
		return false, err
	}
	task.IsArchived = !task.IsArchived
	if err := s.repo.Update(ctx, task); err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	if task.IsArchived {
		s.log(ctx, p, task.ID, "archived", "archived the task")
	} else {
		s.log(ctx, p, task.ID, "unarchived", "restored the task from the archive")
	}
	return task.IsArchived, nil
}

func (s *taskService) Comments(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.Comment, error) {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskView)
	if err != nil {
		return nil, err
	}
	return s.comments.ListByTask(ctx, task.ID)
}

func (s *taskService) AddComment(ctx context.Context, p policy.Principal, id uuid.UUID, text string) (*model.Comment, error) {
	if p.IsAdmin {
		return nil, errAdminNotUser
	}
	task, _, err := s.authorize(ctx, p, id, policy.ActionCommentCreate)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("comment text is required")
	}
	comment := &model.Comment{TaskID: task.ID, AuthorID: p.UserID, Text: text}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.log(ctx, p, task.ID, "commented", "added a comment")
	return comment, nil
}

// DeleteComment lets the author, a workspace manager, a project manager or the admin
// remove a comment.
func (s *taskService) DeleteComment(ctx context.Context, p policy.Principal, commentID uuid.UUID) error {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return notFound(err, apperrors.ErrCommentNotFound)
	}
	task, err := s.repo.FindByID(ctx, comment.TaskID)
	if err != nil {
		return notFound(err, apperrors.ErrTaskNotFound)
	}
	t, err := s.target(ctx, task.ProjectID, policy.ActionCommentDelete)
	if err != nil {
		return err
	}
	t.Comment = comment
	if err := s.guard.check(p, policy.ActionCommentDelete, t); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return notFound(err, apperrors.ErrCommentNotFound)
	}
	return nil
}

func (s *taskService) Activity(ctx context.Context, p policy.Principal, id uuid.UUID, limit int) ([]model.ActivityLog, error) {
	task, _, err := s.authorize(ctx, p, id, policy.ActionTaskView)
	if err != nil {
		return nil, err
	}
	return s.activity.List(ctx, model.ResourceTask, task.ID, limit)
}
