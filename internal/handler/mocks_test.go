package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/service"
)

type testValidator struct {
	v *validator.Validate
}

func (t *testValidator) Validate(i interface{}) error {
	return t.v.Struct(i)
}

// newRequest builds an echo context for a JSON request. body may be nil.
func newRequest(t *testing.T, method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func setParams(c echo.Context, kv ...string) {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
}

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RegisterResult), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *MockAuthService) VerifyTwoFactor(ctx context.Context, userID uuid.UUID, code string) (*service.TokenPair, *model.User, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*service.TokenPair), args.Get(1).(*model.User), args.Error(2)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *MockAuthService) VerifyPhone(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

func (m *MockAuthService) SendVerification(ctx context.Context, channel service.Channel, identifier string, mode service.IssueMode) (bool, error) {
	args := m.Called(ctx, channel, identifier, mode)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, channel service.Channel, identifier string) (bool, error) {
	args := m.Called(ctx, channel, identifier)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, password string) error {
	return m.Called(ctx, token, password).Error(0)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	return m.Called(ctx, refreshToken, accessToken).Error(0)
}

func (m *MockAuthService) AdminLogin(ctx context.Context, email, password string) (string, *model.Admin, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.Admin), args.Error(2)
}

// MockTaskService is a mock implementation of service.TaskService.
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) task(args mock.Arguments) (*model.Task, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskService) Create(ctx context.Context, p policy.Principal, projectID uuid.UUID, in service.CreateTaskInput) (*model.Task, error) {
	return m.task(m.Called(ctx, p, projectID, in))
}

func (m *MockTaskService) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Task, error) {
	return m.task(m.Called(ctx, p, id))
}

func (m *MockTaskService) ListByProject(ctx context.Context, p policy.Principal, projectID uuid.UUID, includeArchived bool) ([]model.Task, error) {
	args := m.Called(ctx, p, projectID, includeArchived)
	tasks, _ := args.Get(0).([]model.Task)
	return tasks, args.Error(1)
}

func (m *MockTaskService) Update(ctx context.Context, p policy.Principal, id uuid.UUID, in service.UpdateTaskInput) (*model.Task, error) {
	return m.task(m.Called(ctx, p, id, in))
}

func (m *MockTaskService) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *MockTaskService) AddSubtask(ctx context.Context, p policy.Principal, id uuid.UUID, title string) (*model.Subtask, error) {
	args := m.Called(ctx, p, id, title)
	st, _ := args.Get(0).(*model.Subtask)
	return st, args.Error(1)
}

func (m *MockTaskService) UpdateSubtask(ctx context.Context, p policy.Principal, id, subtaskID uuid.UUID, in service.UpdateSubtaskInput) (*model.Subtask, error) {
	args := m.Called(ctx, p, id, subtaskID, in)
	st, _ := args.Get(0).(*model.Subtask)
	return st, args.Error(1)
}

func (m *MockTaskService) ToggleWatch(ctx context.Context, p policy.Principal, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, p, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskService) ToggleArchive(ctx context.Context, p policy.Principal, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, p, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskService) Comments(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.Comment, error) {
	args := m.Called(ctx, p, id)
	comments, _ := args.Get(0).([]model.Comment)
	return comments, args.Error(1)
}

func (m *MockTaskService) AddComment(ctx context.Context, p policy.Principal, id uuid.UUID, text string) (*model.Comment, error) {
	args := m.Called(ctx, p, id, text)
	comment, _ := args.Get(0).(*model.Comment)
	return comment, args.Error(1)
}

func (m *MockTaskService) DeleteComment(ctx context.Context, p policy.Principal, commentID uuid.UUID) error {
	return m.Called(ctx, p, commentID).Error(0)
}

func (m *MockTaskService) Activity(ctx context.Context, p policy.Principal, id uuid.UUID, limit int) ([]model.ActivityLog, error) {
	args := m.Called(ctx, p, id, limit)
	feed, _ := args.Get(0).([]model.ActivityLog)
	return feed, args.Error(1)
}

// MockUploadService is a mock implementation of service.UploadService.
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) UploadImage(ctx context.Context, userID uuid.UUID, data []byte) (*service.UploadResult, error) {
	args := m.Called(ctx, userID, data)
	res, _ := args.Get(0).(*service.UploadResult)
	return res, args.Error(1)
}

// MockWorkspaceService is a mock implementation of service.WorkspaceService.
type MockWorkspaceService struct {
	mock.Mock
}

func (m *MockWorkspaceService) workspace(args mock.Arguments) (*model.Workspace, error) {
	ws, _ := args.Get(0).(*model.Workspace)
	return ws, args.Error(1)
}

func (m *MockWorkspaceService) Create(ctx context.Context, p policy.Principal, in service.CreateWorkspaceInput) (*model.Workspace, error) {
	return m.workspace(m.Called(ctx, p, in))
}

func (m *MockWorkspaceService) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Workspace, error) {
	return m.workspace(m.Called(ctx, p, id))
}

func (m *MockWorkspaceService) List(ctx context.Context, p policy.Principal) ([]model.Workspace, error) {
	args := m.Called(ctx, p)
	list, _ := args.Get(0).([]model.Workspace)
	return list, args.Error(1)
}

func (m *MockWorkspaceService) Update(ctx context.Context, p policy.Principal, id uuid.UUID, in service.UpdateWorkspaceInput) (*model.Workspace, error) {
	return m.workspace(m.Called(ctx, p, id, in))
}

func (m *MockWorkspaceService) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *MockWorkspaceService) Invite(ctx context.Context, p policy.Principal, id uuid.UUID, email string, role model.WorkspaceRole) (*service.InviteResult, error) {
	args := m.Called(ctx, p, id, email, role)
	res, _ := args.Get(0).(*service.InviteResult)
	return res, args.Error(1)
}

func (m *MockWorkspaceService) AcceptInvite(ctx context.Context, p policy.Principal, token string) (*model.Workspace, error) {
	return m.workspace(m.Called(ctx, p, token))
}

func (m *MockWorkspaceService) Members(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.WorkspaceMember, error) {
	args := m.Called(ctx, p, id)
	members, _ := args.Get(0).([]model.WorkspaceMember)
	return members, args.Error(1)
}

func (m *MockWorkspaceService) AddMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID, role model.WorkspaceRole) (*model.WorkspaceMember, error) {
	args := m.Called(ctx, p, id, userID, role)
	member, _ := args.Get(0).(*model.WorkspaceMember)
	return member, args.Error(1)
}

func (m *MockWorkspaceService) UpdateMemberRole(ctx context.Context, p policy.Principal, id, userID uuid.UUID, role model.WorkspaceRole) error {
	return m.Called(ctx, p, id, userID, role).Error(0)
}

func (m *MockWorkspaceService) RemoveMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	return m.Called(ctx, p, id, userID).Error(0)
}

func (m *MockWorkspaceService) Managers(ctx context.Context, p policy.Principal, id uuid.UUID) ([]model.User, error) {
	args := m.Called(ctx, p, id)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *MockWorkspaceService) AssignManager(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	return m.Called(ctx, p, id, userID).Error(0)
}

func (m *MockWorkspaceService) RemoveManager(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	return m.Called(ctx, p, id, userID).Error(0)
}

// MockProjectService is a mock implementation of service.ProjectService.
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) project(args mock.Arguments) (*model.Project, error) {
	project, _ := args.Get(0).(*model.Project)
	return project, args.Error(1)
}

func (m *MockProjectService) Create(ctx context.Context, p policy.Principal, workspaceID uuid.UUID, in service.CreateProjectInput) (*model.Project, error) {
	return m.project(m.Called(ctx, p, workspaceID, in))
}

func (m *MockProjectService) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*model.Project, error) {
	return m.project(m.Called(ctx, p, id))
}

func (m *MockProjectService) ListByWorkspace(ctx context.Context, p policy.Principal, workspaceID uuid.UUID) ([]model.Project, error) {
	args := m.Called(ctx, p, workspaceID)
	list, _ := args.Get(0).([]model.Project)
	return list, args.Error(1)
}

func (m *MockProjectService) Update(ctx context.Context, p policy.Principal, id uuid.UUID, in service.UpdateProjectInput) (*model.Project, error) {
	return m.project(m.Called(ctx, p, id, in))
}

func (m *MockProjectService) UpdateDetails(ctx context.Context, p policy.Principal, id uuid.UUID, in service.UpdateProjectDetailsInput) (*model.Project, error) {
	return m.project(m.Called(ctx, p, id, in))
}

func (m *MockProjectService) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *MockProjectService) AddMember(ctx context.Context, p policy.Principal, id uuid.UUID, in service.MemberInput) (*model.ProjectMember, error) {
	args := m.Called(ctx, p, id, in)
	member, _ := args.Get(0).(*model.ProjectMember)
	return member, args.Error(1)
}

func (m *MockProjectService) UpdateMemberRole(ctx context.Context, p policy.Principal, id uuid.UUID, in service.MemberInput) error {
	return m.Called(ctx, p, id, in).Error(0)
}

func (m *MockProjectService) RemoveMember(ctx context.Context, p policy.Principal, id, userID uuid.UUID) error {
	return m.Called(ctx, p, id, userID).Error(0)
}

func (m *MockProjectService) Activity(ctx context.Context, p policy.Principal, id uuid.UUID, limit int) ([]model.ActivityLog, error) {
	args := m.Called(ctx, p, id, limit)
	feed, _ := args.Get(0).([]model.ActivityLog)
	return feed, args.Error(1)
}
