package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/service"
)

func TestWorkspaceHandler_Invite(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	wsID := uuid.New()

	tests := []struct {
		name   string
		body   map[string]string
		setup  func(*MockWorkspaceService)
		status int
	}{
		{
			name: "sent",
			body: map[string]string{"email": "new@example.com", "role": "viewer"},
			setup: func(m *MockWorkspaceService) {
				m.On("Invite", mock.Anything, mock.Anything, wsID, "new@example.com", model.WorkspaceRoleViewer).
					Return(&service.InviteResult{Invite: &model.WorkspaceInvite{Role: model.WorkspaceRoleViewer}, EmailSent: true}, nil)
			},
			status: http.StatusCreated,
		},
		{
			name:   "legacy owner role is not assignable",
			body:   map[string]string{"email": "new@example.com", "role": "owner"},
			setup:  func(*MockWorkspaceService) {},
			status: http.StatusBadRequest,
		},
		{
			name:   "email required",
			body:   map[string]string{"role": "member"},
			setup:  func(*MockWorkspaceService) {},
			status: http.StatusBadRequest,
		},
		{
			name: "already a member",
			body: map[string]string{"email": "old@example.com"},
			setup: func(m *MockWorkspaceService) {
				m.On("Invite", mock.Anything, mock.Anything, wsID, "old@example.com", model.WorkspaceRole("")).
					Return(nil, apperrors.ErrAlreadyMember)
			},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWorkspaceService)
			tt.setup(svc)

			c, rec := newRequest(t, http.MethodPost, "/", tt.body)
			setParams(c, "id", wsID.String())
			auth.SetUser(c, user)

			err := NewWorkspaceHandler(svc, new(MockProjectService)).Invite(c)
			if tt.status == http.StatusCreated {
				require.NoError(t, err)
				assert.Equal(t, http.StatusCreated, rec.Code)
				assert.Equal(t, true, decode(t, rec)["emailSent"])
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.status, apperrors.MapErrorToHTTP(err).StatusCode)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWorkspaceHandler_AcceptInvite(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	svc := new(MockWorkspaceService)
	svc.On("AcceptInvite", mock.Anything, policy.UserPrincipal(user), "tok-1").
		Return(&model.Workspace{ID: uuid.New(), Name: "Ops"}, nil)
	svc.On("AcceptInvite", mock.Anything, mock.Anything, "stale").Return(nil, apperrors.ErrInviteExpired)
	h := NewWorkspaceHandler(svc, new(MockProjectService))

	c, rec := newRequest(t, http.MethodPost, "/", map[string]string{"token": "tok-1"})
	auth.SetUser(c, user)
	require.NoError(t, h.AcceptInvite(c))
	assert.Equal(t, "Ops", decode(t, rec)["name"])

	c, _ = newRequest(t, http.MethodPost, "/", map[string]string{"token": "stale"})
	auth.SetUser(c, user)
	assert.ErrorIs(t, h.AcceptInvite(c), apperrors.ErrInviteExpired)

	c, _ = newRequest(t, http.MethodPost, "/", map[string]string{})
	auth.SetUser(c, user)
	assert.Equal(t, http.StatusBadRequest, apperrors.MapErrorToHTTP(h.AcceptInvite(c)).StatusCode)

	svc.AssertExpectations(t)
}

func TestWorkspaceHandler_AddMemberRequiresUser(t *testing.T) {
	svc := new(MockWorkspaceService)
	c, _ := newRequest(t, http.MethodPost, "/", map[string]string{"role": "member"})
	setParams(c, "id", uuid.NewString())
	auth.SetAdmin(c, &model.Admin{ID: uuid.New()})

	err := NewWorkspaceHandler(svc, new(MockProjectService)).AddMember(c)
	assert.Equal(t, http.StatusBadRequest, apperrors.MapErrorToHTTP(err).StatusCode)
	svc.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkspaceHandler_CreateProject(t *testing.T) {
	admin := &model.Admin{ID: uuid.New()}
	wsID := uuid.New()
	bob := uuid.New()

	t.Run("dates and members", func(t *testing.T) {
		projects := new(MockProjectService)
		projects.On("Create", mock.Anything, policy.AdminPrincipal(admin.ID), wsID, mock.MatchedBy(func(in service.CreateProjectInput) bool {
			return in.Title == "Launch" &&
				in.StartDate != nil && in.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) &&
				in.DueDate == nil &&
				len(in.Members) == 1 && in.Members[0].UserID == bob && in.Members[0].Role == model.ProjectRoleContributor
		})).Return(&model.Project{ID: uuid.New(), Title: "Launch"}, nil)

		c, rec := newRequest(t, http.MethodPost, "/", map[string]interface{}{
			"title":     "Launch",
			"startDate": "2024-03-01",
			"dueDate":   "",
			"members":   []map[string]string{{"userId": bob.String(), "role": "contributor"}},
		})
		setParams(c, "id", wsID.String())
		auth.SetAdmin(c, admin)

		require.NoError(t, NewWorkspaceHandler(new(MockWorkspaceService), projects).CreateProject(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
		projects.AssertExpectations(t)
	})

	t.Run("member role outside the vocabulary", func(t *testing.T) {
		projects := new(MockProjectService)
		c, _ := newRequest(t, http.MethodPost, "/", map[string]interface{}{
			"title":   "Launch",
			"members": []map[string]string{{"userId": bob.String(), "role": "admin"}},
		})
		setParams(c, "id", wsID.String())
		auth.SetAdmin(c, admin)

		err := NewWorkspaceHandler(new(MockWorkspaceService), projects).CreateProject(c)
		assert.Equal(t, http.StatusBadRequest, apperrors.MapErrorToHTTP(err).StatusCode)
		projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProjectHandler_UpdateSchedule(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	projectID := uuid.New()
	projects := new(MockProjectService)
	projects.On("Update", mock.Anything, mock.Anything, projectID, mock.MatchedBy(func(in service.UpdateProjectInput) bool {
		return in.Status != nil && *in.Status == model.ProjectStatusOnHold &&
			in.DueDate != nil && in.DueDate.Year() == 2025 && in.StartDate == nil
	})).Return(&model.Project{ID: projectID}, nil)
	h := NewProjectHandler(projects, new(MockTaskService))

	c, rec := newRequest(t, http.MethodPut, "/", map[string]string{"status": "on_hold", "dueDate": "2025-01-31T12:00:00Z"})
	setParams(c, "id", projectID.String())
	auth.SetUser(c, user)
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newRequest(t, http.MethodPut, "/", map[string]string{"startDate": "tomorrow"})
	setParams(c, "id", projectID.String())
	auth.SetUser(c, user)
	assert.Equal(t, http.StatusBadRequest, apperrors.MapErrorToHTTP(h.Update(c)).StatusCode)

	projects.AssertExpectations(t)
}

func TestProjectHandler_TasksArchivedFlag(t *testing.T) {
	projectID := uuid.New()
	tasks := new(MockTaskService)
	tasks.On("ListByProject", mock.Anything, mock.Anything, projectID, true).Return([]model.Task{{Title: "old"}}, nil)
	tasks.On("ListByProject", mock.Anything, mock.Anything, projectID, false).Return([]model.Task{}, nil)
	h := NewProjectHandler(new(MockProjectService), tasks)

	for _, target := range []string{"/?archived=true", "/"} {
		c, rec := newRequest(t, http.MethodGet, target, nil)
		setParams(c, "id", projectID.String())
		auth.SetUser(c, &model.User{ID: uuid.New()})
		require.NoError(t, h.Tasks(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	tasks.AssertExpectations(t)
}
