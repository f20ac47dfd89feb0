package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/notify"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
)

// hub wires the real repositories over an in-memory database.
type hub struct {
	users      repository.UserRepository
	workspaces repository.WorkspaceRepository
	projects   repository.ProjectRepository
	tasks      repository.TaskRepository
	comments   repository.CommentRepository
	activity   *recordingActivity
	transport  *fakeTransport
	jwt        *auth.JWTService

	workspaceSvc WorkspaceService
	projectSvc   ProjectService
	taskSvc      TaskService
}

var adminP = policy.AdminPrincipal(uuid.New())

func newHub(t *testing.T) *hub {
	t.Helper()
	gdb := setupTestDB(t)
	h := &hub{
		users:      repository.NewUserRepository(gdb),
		workspaces: repository.NewWorkspaceRepository(gdb),
		projects:   repository.NewProjectRepository(gdb),
		tasks:      repository.NewTaskRepository(gdb),
		comments:   repository.NewCommentRepository(gdb),
		activity:   &recordingActivity{},
		transport:  &fakeTransport{},
		jwt:        auth.NewJWTService("test-secret", time.Hour, 24*time.Hour),
	}
	notifier := notify.New(h.transport, h.transport, "http://localhost:5173", nil, nil)
	h.workspaceSvc = NewWorkspaceService(h.workspaces, h.users, notifier, h.jwt, nil, nil, nil)
	h.projectSvc = NewProjectService(h.projects, h.workspaces, h.users, h.activity, nil, nil)
	h.taskSvc = NewTaskService(h.tasks, h.comments, h.projects, h.workspaces, h.activity, nil, nil)
	return h
}

func (h *hub) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: strPtr(name + "@example.com"), IsEmailVerified: true, PasswordHash: "x"}
	require.NoError(t, h.users.Create(context.Background(), u))
	return u
}

// principal reloads the user so manager links are current.
func (h *hub) principal(t *testing.T, u *model.User) policy.Principal {
	t.Helper()
	loaded, err := h.users.FindByIDWithManaged(context.Background(), u.ID)
	require.NoError(t, err)
	return policy.UserPrincipal(loaded)
}

func (h *hub) workspace(t *testing.T, name string) *model.Workspace {
	t.Helper()
	ws, err := h.workspaceSvc.Create(context.Background(), adminP, CreateWorkspaceInput{Name: name})
	require.NoError(t, err)
	return ws
}

func (h *hub) invite(t *testing.T, ws *model.Workspace, u *model.User, role model.WorkspaceRole) string {
	t.Helper()
	res, err := h.workspaceSvc.Invite(context.Background(), adminP, ws.ID, *u.Email, role)
	require.NoError(t, err)
	return res.Invite.Token
}

func TestWorkspaceService_CreateIsAdminOnly(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	_, err := h.workspaceSvc.Create(ctx, h.principal(t, alice), CreateWorkspaceInput{Name: "Mine"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	ws, err := h.workspaceSvc.Create(ctx, adminP, CreateWorkspaceInput{Name: "  Team  "})
	require.NoError(t, err)
	assert.Equal(t, "Team", ws.Name)
	assert.Equal(t, defaultWorkspaceColor, ws.Color)

	_, err = h.workspaceSvc.Create(ctx, adminP, CreateWorkspaceInput{Name: " "})
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestWorkspaceService_FirstAcceptedMemberBecomesManager(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	ws := h.workspace(t, "Team")
	owner := h.user(t, "owner")
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	// an admin-role member does not count toward the first member
	_, err := h.workspaceSvc.AddMember(ctx, adminP, ws.ID, owner.ID, model.WorkspaceRoleAdmin)
	require.NoError(t, err)

	aliceToken := h.invite(t, ws, alice, model.WorkspaceRoleMember)
	bobToken := h.invite(t, ws, bob, model.WorkspaceRoleMember)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, h.transport.emails)

	got, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), aliceToken)
	require.NoError(t, err)
	_, ok := got.Member(alice.ID)
	assert.True(t, ok)

	_, err = h.workspaceSvc.AcceptInvite(ctx, h.principal(t, bob), bobToken)
	require.NoError(t, err)

	alicePrincipal := h.principal(t, alice)
	bobPrincipal := h.principal(t, bob)
	assert.True(t, alicePrincipal.Manages(ws.ID))
	assert.False(t, bobPrincipal.Manages(ws.ID))
	assert.False(t, h.principal(t, owner).Manages(ws.ID))

	managers, err := h.workspaceSvc.Managers(ctx, bobPrincipal, ws.ID)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, alice.ID, managers[0].ID)
}

func TestWorkspaceService_DirectAddNeverPromotes(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	ws := h.workspace(t, "Team")
	alice := h.user(t, "alice")

	_, err := h.workspaceSvc.AddMember(ctx, adminP, ws.ID, alice.ID, model.WorkspaceRoleMember)
	require.NoError(t, err)
	assert.False(t, h.principal(t, alice).Manages(ws.ID))

	_, err = h.workspaceSvc.AddMember(ctx, adminP, ws.ID, alice.ID, model.WorkspaceRoleMember)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)
}

func TestWorkspaceService_AcceptInviteRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("invite belongs to someone else", func(t *testing.T) {
		h := newHub(t)
		ws := h.workspace(t, "Team")
		alice := h.user(t, "alice")
		mallory := h.user(t, "mallory")
		token := h.invite(t, ws, alice, "")

		_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, mallory), token)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("invite used twice", func(t *testing.T) {
		h := newHub(t)
		ws := h.workspace(t, "Team")
		alice := h.user(t, "alice")
		token := h.invite(t, ws, alice, "")

		_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), token)
		require.NoError(t, err)
		_, err = h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), token)
		assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)
	})

	t.Run("reinvite replaces the pending invite", func(t *testing.T) {
		h := newHub(t)
		ws := h.workspace(t, "Team")
		alice := h.user(t, "alice")
		first := h.invite(t, ws, alice, "")
		second := h.invite(t, ws, alice, model.WorkspaceRoleViewer)

		_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), first)
		assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)
		got, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), second)
		require.NoError(t, err)
		m, ok := got.Member(alice.ID)
		require.True(t, ok)
		assert.Equal(t, model.WorkspaceRoleViewer, m.Role)
	})

	t.Run("stored invite expired", func(t *testing.T) {
		h := newHub(t)
		ws := h.workspace(t, "Team")
		alice := h.user(t, "alice")
		token := h.invite(t, ws, alice, "")

		h.workspaceSvc.(*workspaceService).now = func() time.Time { return time.Now().Add(auth.InviteExpiry + time.Hour) }
		_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), token)
		assert.ErrorIs(t, err, apperrors.ErrInviteExpired)
	})

	t.Run("malformed token", func(t *testing.T) {
		h := newHub(t)
		alice := h.user(t, "alice")
		_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), "not-a-token")
		assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)
	})

	t.Run("master admin cannot accept", func(t *testing.T) {
		h := newHub(t)
		_, err := h.workspaceSvc.AcceptInvite(ctx, adminP, "whatever")
		assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
	})

	t.Run("existing member cannot be invited", func(t *testing.T) {
		h := newHub(t)
		ws := h.workspace(t, "Team")
		alice := h.user(t, "alice")
		_, err := h.workspaceSvc.AddMember(ctx, adminP, ws.ID, alice.ID, "")
		require.NoError(t, err)

		_, err = h.workspaceSvc.Invite(ctx, adminP, ws.ID, "alice@example.com", "")
		assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)
	})
}

func TestWorkspaceService_Access(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	ws := h.workspace(t, "Team")
	other := h.workspace(t, "Other")
	alice := h.user(t, "alice")
	viewer := h.user(t, "viewer")
	stranger := h.user(t, "stranger")

	_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), h.invite(t, ws, alice, ""))
	require.NoError(t, err)
	_, err = h.workspaceSvc.AddMember(ctx, adminP, ws.ID, viewer.ID, model.WorkspaceRoleViewer)
	require.NoError(t, err)

	_, err = h.workspaceSvc.Get(ctx, h.principal(t, stranger), ws.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = h.workspaceSvc.Get(ctx, h.principal(t, viewer), ws.ID)
	assert.NoError(t, err)

	_, err = h.workspaceSvc.Update(ctx, h.principal(t, viewer), ws.ID, UpdateWorkspaceInput{Name: strPtr("Renamed")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := h.workspaceSvc.Update(ctx, h.principal(t, alice), ws.ID, UpdateWorkspaceInput{Name: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	// managing one workspace grants nothing in another
	_, err = h.workspaceSvc.Get(ctx, h.principal(t, alice), other.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	list, err := h.workspaceSvc.List(ctx, h.principal(t, alice))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ws.ID, list[0].ID)

	all, err := h.workspaceSvc.List(ctx, adminP)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = h.workspaceSvc.Get(ctx, adminP, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)
}

func TestWorkspaceService_MemberManagement(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	ws := h.workspace(t, "Team")
	alice := h.user(t, "alice")

	_, err := h.workspaceSvc.AddMember(ctx, adminP, ws.ID, alice.ID, "superuser")
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)

	_, err = h.workspaceSvc.AddMember(ctx, adminP, ws.ID, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = h.workspaceSvc.AddMember(ctx, adminP, ws.ID, alice.ID, "")
	require.NoError(t, err)
	require.NoError(t, h.workspaceSvc.UpdateMemberRole(ctx, adminP, ws.ID, alice.ID, model.WorkspaceRoleAdmin))

	members, err := h.workspaceSvc.Members(ctx, adminP, ws.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, model.WorkspaceRoleAdmin, members[0].Role)

	// owner is never assignable
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(
		h.workspaceSvc.UpdateMemberRole(ctx, adminP, ws.ID, alice.ID, model.WorkspaceRoleOwner)).StatusCode)

	require.NoError(t, h.workspaceSvc.RemoveMember(ctx, adminP, ws.ID, alice.ID))
	assert.ErrorIs(t, h.workspaceSvc.RemoveMember(ctx, adminP, ws.ID, alice.ID), apperrors.ErrNotMember)
	assert.ErrorIs(t, h.workspaceSvc.UpdateMemberRole(ctx, adminP, ws.ID, alice.ID, model.WorkspaceRoleMember), apperrors.ErrNotMember)
}

func TestWorkspaceService_ManagerAssignment(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	ws := h.workspace(t, "Team")
	alice := h.user(t, "alice")

	assert.ErrorIs(t, h.workspaceSvc.AssignManager(ctx, h.principal(t, alice), ws.ID, alice.ID), apperrors.ErrForbidden)

	require.NoError(t, h.workspaceSvc.AssignManager(ctx, adminP, ws.ID, alice.ID))
	p := h.principal(t, alice)
	assert.True(t, p.Manages(ws.ID))

	loaded, err := h.workspaceSvc.Get(ctx, p, ws.ID)
	require.NoError(t, err)
	_, ok := loaded.Member(alice.ID)
	assert.True(t, ok, "assigning a manager also adds membership")

	require.NoError(t, h.workspaceSvc.RemoveManager(ctx, adminP, ws.ID, alice.ID))
	assert.False(t, h.principal(t, alice).Manages(ws.ID))

	err = h.workspaceSvc.RemoveManager(ctx, adminP, ws.ID, alice.ID)
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestWorkspaceService_DeleteCascades(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()
	ws := h.workspace(t, "Team")
	alice := h.user(t, "alice")
	_, err := h.workspaceSvc.AcceptInvite(ctx, h.principal(t, alice), h.invite(t, ws, alice, ""))
	require.NoError(t, err)

	manager := h.principal(t, alice)
	project, err := h.projectSvc.Create(ctx, manager, ws.ID, CreateProjectInput{Title: "Launch"})
	require.NoError(t, err)
	task, err := h.taskSvc.Create(ctx, manager, project.ID, CreateTaskInput{Title: "Write copy"})
	require.NoError(t, err)

	require.NoError(t, h.workspaceSvc.Delete(ctx, manager, ws.ID))

	_, err = h.workspaceSvc.Get(ctx, adminP, ws.ID)
	assert.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)
	_, err = h.projectSvc.Get(ctx, adminP, project.ID)
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
	_, err = h.taskSvc.Get(ctx, adminP, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	assert.False(t, h.principal(t, alice).Manages(ws.ID))
}
