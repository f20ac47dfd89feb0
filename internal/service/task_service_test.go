package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
)

// taskScene adds a project with a lead (project manager), a contributor and a viewer.
type taskScene struct {
	*projectScene
	project     *model.Project
	lead        *model.User
	contributor *model.User
	viewer      *model.User
}

func newTaskScene(t *testing.T) *taskScene {
	t.Helper()
	ps := newProjectScene(t)
	s := &taskScene{projectScene: ps}
	s.lead = ps.user(t, "lead")
	s.contributor = ps.user(t, "contributor")
	s.viewer = ps.user(t, "viewer")

	project, err := ps.projectSvc.Create(context.Background(), adminP, ps.ws.ID, CreateProjectInput{
		Title: "Launch",
		Members: []MemberInput{
			{UserID: s.lead.ID, Role: model.ProjectRoleManager},
			{UserID: s.contributor.ID, Role: model.ProjectRoleContributor},
			{UserID: s.viewer.ID, Role: model.ProjectRoleViewer},
		},
	})
	require.NoError(t, err)
	s.project = project
	return s
}

func (s *taskScene) newTask(t *testing.T, in CreateTaskInput) *model.Task {
	t.Helper()
	task, err := s.taskSvc.Create(context.Background(), s.p(t, s.contributor), s.project.ID, in)
	require.NoError(t, err)
	return task
}

func TestTaskService_Create(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()

	task := s.newTask(t, CreateTaskInput{Title: "Write copy", Assignees: []uuid.UUID{s.lead.ID}})
	assert.Equal(t, model.TaskStatusTodo, task.Status)
	assert.Equal(t, model.TaskPriorityMedium, task.Priority)
	require.NotNil(t, task.CreatedBy)
	assert.Equal(t, s.contributor.ID, *task.CreatedBy)
	require.Len(t, task.Assignees, 1)
	assert.Equal(t, s.lead.ID, task.Assignees[0].ID)

	// even a viewer role is a project member
	_, err := s.taskSvc.Create(ctx, s.p(t, s.viewer), s.project.ID, CreateTaskInput{Title: "Viewer task"})
	assert.NoError(t, err)

	// workspace managers who are not project members cannot create
	_, err = s.taskSvc.Create(ctx, s.p(t, s.manager), s.project.ID, CreateTaskInput{Title: "x"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = s.taskSvc.Create(ctx, s.p(t, s.contributor), s.project.ID, CreateTaskInput{Title: "x", Assignees: []uuid.UUID{s.outsider.ID}})
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)

	_, err = s.taskSvc.Create(ctx, s.p(t, s.contributor), s.project.ID, CreateTaskInput{Title: "x", Priority: "urgent"})
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)

	_, err = s.taskSvc.Create(ctx, adminP, uuid.New(), CreateTaskInput{Title: "x"})
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
}

func TestTaskService_Visibility(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()
	task := s.newTask(t, CreateTaskInput{Title: "Write copy"})

	// workspace member without a project role can still view
	_, err := s.taskSvc.Get(ctx, s.p(t, s.member), task.ID)
	assert.NoError(t, err)

	_, err = s.taskSvc.Get(ctx, s.p(t, s.outsider), task.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = s.taskSvc.ListByProject(ctx, s.p(t, s.outsider), s.project.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = s.taskSvc.Get(ctx, adminP, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}

func TestTaskService_Update(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()
	task := s.newTask(t, CreateTaskInput{Title: "Write copy"})

	status := model.TaskStatusInProgress
	_, err := s.taskSvc.Update(ctx, s.p(t, s.contributor), task.ID, UpdateTaskInput{Status: &status})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "contributors cannot edit tasks")

	priority := model.TaskPriorityHigh
	due := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	assignees := []uuid.UUID{s.contributor.ID, s.viewer.ID}
	updated, err := s.taskSvc.Update(ctx, s.p(t, s.lead), task.ID, UpdateTaskInput{
		Title:     strPtr("Write launch copy"),
		Status:    &status,
		Priority:  &priority,
		DueDate:   &due,
		Assignees: &assignees,
	})
	require.NoError(t, err)
	assert.Equal(t, "Write launch copy", updated.Title)
	assert.Equal(t, status, updated.Status)
	assert.Equal(t, priority, updated.Priority)
	assert.Len(t, updated.Assignees, 2)

	assert.Equal(t, []string{
		`created task "Write copy"`,
		`changed title from "Write copy" to "Write launch copy"`,
		"changed status from todo to in_progress",
		"changed priority from medium to high",
		"changed due date from none to 2024-07-01",
		"assigned 2 user(s)",
	}, s.activity.details(task.ID))

	// workspace managers may edit without a project role
	cleared, err := s.taskSvc.Update(ctx, s.p(t, s.manager), task.ID, UpdateTaskInput{ClearDueDate: true, Assignees: &[]uuid.UUID{}})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
	assert.Empty(t, cleared.Assignees)

	bad := model.TaskStatus("blocked")
	_, err = s.taskSvc.Update(ctx, s.p(t, s.lead), task.ID, UpdateTaskInput{Status: &bad})
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestDescribeAssigneeChange(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	current := []model.User{{ID: a}, {ID: b}}

	assert.Equal(t, "", describeAssigneeChange(current, []uuid.UUID{b, a}))
	assert.Equal(t, "assigned 1 user(s)", describeAssigneeChange(current, []uuid.UUID{a, b, c}))
	assert.Equal(t, "unassigned 2 user(s)", describeAssigneeChange(current, nil))
	assert.Equal(t, "assigned 1 user(s) and unassigned 1 user(s)", describeAssigneeChange(current, []uuid.UUID{a, c}))
}

func TestTaskService_Subtasks(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()
	task := s.newTask(t, CreateTaskInput{Title: "Write copy"})

	sub, err := s.taskSvc.AddSubtask(ctx, s.p(t, s.viewer), task.ID, "Outline")
	require.NoError(t, err)
	assert.False(t, sub.Completed)

	_, err = s.taskSvc.AddSubtask(ctx, s.p(t, s.member), task.ID, "Not allowed")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	done := true
	updated, err := s.taskSvc.UpdateSubtask(ctx, s.p(t, s.contributor), task.ID, sub.ID, UpdateSubtaskInput{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	reloaded, err := s.taskSvc.Get(ctx, adminP, task.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Subtasks, 1)
	assert.True(t, reloaded.Subtasks[0].Completed)

	notDone := false
	_, err = s.taskSvc.UpdateSubtask(ctx, s.p(t, s.contributor), task.ID, sub.ID, UpdateSubtaskInput{Completed: &notDone})
	require.NoError(t, err)
	reloaded, err = s.taskSvc.Get(ctx, adminP, task.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Subtasks[0].Completed)

	_, err = s.taskSvc.UpdateSubtask(ctx, s.p(t, s.contributor), task.ID, uuid.New(), UpdateSubtaskInput{Completed: &done})
	assert.ErrorIs(t, err, apperrors.ErrSubtaskNotFound)

	_, err = s.taskSvc.AddSubtask(ctx, s.p(t, s.contributor), task.ID, "  ")
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestTaskService_ToggleWatchAndArchive(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()
	task := s.newTask(t, CreateTaskInput{Title: "Write copy"})

	watching, err := s.taskSvc.ToggleWatch(ctx, s.p(t, s.viewer), task.ID)
	require.NoError(t, err)
	assert.True(t, watching)
	watching, err = s.taskSvc.ToggleWatch(ctx, s.p(t, s.viewer), task.ID)
	require.NoError(t, err)
	assert.False(t, watching)

	_, err = s.taskSvc.ToggleWatch(ctx, adminP, task.ID)
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)

	archived, err := s.taskSvc.ToggleArchive(ctx, s.p(t, s.contributor), task.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	active, err := s.taskSvc.ListByProject(ctx, s.p(t, s.contributor), s.project.ID, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.taskSvc.ListByProject(ctx, s.p(t, s.contributor), s.project.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	archived, err = s.taskSvc.ToggleArchive(ctx, s.p(t, s.contributor), task.ID)
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestTaskService_Comments(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()
	task := s.newTask(t, CreateTaskInput{Title: "Write copy"})

	comment, err := s.taskSvc.AddComment(ctx, s.p(t, s.viewer), task.ID, " Looks good ")
	require.NoError(t, err)
	assert.Equal(t, "Looks good", comment.Text)

	_, err = s.taskSvc.AddComment(ctx, adminP, task.ID, "admin")
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)

	_, err = s.taskSvc.AddComment(ctx, s.p(t, s.member), task.ID, "not a project member")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	comments, err := s.taskSvc.Comments(ctx, s.p(t, s.member), task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	// only the author or a manager may delete
	assert.ErrorIs(t, s.taskSvc.DeleteComment(ctx, s.p(t, s.contributor), comment.ID), apperrors.ErrForbidden)
	require.NoError(t, s.taskSvc.DeleteComment(ctx, s.p(t, s.viewer), comment.ID))
	assert.ErrorIs(t, s.taskSvc.DeleteComment(ctx, s.p(t, s.viewer), comment.ID), apperrors.ErrCommentNotFound)

	second, err := s.taskSvc.AddComment(ctx, s.p(t, s.contributor), task.ID, "another")
	require.NoError(t, err)
	require.NoError(t, s.taskSvc.DeleteComment(ctx, s.p(t, s.lead), second.ID))
}

func TestTaskService_Delete(t *testing.T) {
	s := newTaskScene(t)
	ctx := context.Background()
	task := s.newTask(t, CreateTaskInput{Title: "Write copy", Assignees: []uuid.UUID{s.viewer.ID}})
	_, err := s.taskSvc.AddSubtask(ctx, s.p(t, s.contributor), task.ID, "Outline")
	require.NoError(t, err)
	_, err = s.taskSvc.AddComment(ctx, s.p(t, s.contributor), task.ID, "note")
	require.NoError(t, err)

	assert.ErrorIs(t, s.taskSvc.Delete(ctx, s.p(t, s.contributor), task.ID), apperrors.ErrForbidden)
	require.NoError(t, s.taskSvc.Delete(ctx, s.p(t, s.lead), task.ID))

	_, err = s.taskSvc.Get(ctx, adminP, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	mine, err := s.tasks.ListByAssignee(ctx, s.viewer.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// activity outlives the task
	feed := s.activity.details(task.ID)
	assert.NotEmpty(t, feed)
}
