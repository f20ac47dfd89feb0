package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskhub/docs"
	"taskhub/internal/auth"
	"taskhub/internal/config"
	"taskhub/internal/db"
	"taskhub/internal/handler"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/notify"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/internal/storage"
)

var codePattern = regexp.MustCompile(`<strong>(\d{6})</strong>`)

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *recordingMailer) SendEmail(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match := codePattern.FindStringSubmatch(body); match != nil {
		m.codes[to] = match[1]
	}
	return nil
}

func (m *recordingMailer) lastCode(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type testServer struct {
	e      *echo.Echo
	mailer *recordingMailer
	admins repository.AdminRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := db.Open("sqlite", ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	log := zap.NewNop()
	registry := prometheus.NewRegistry()
	rec := metrics.NewCollector(registry)
	mailer := &recordingMailer{codes: map[string]string{}}
	notifier := notify.New(mailer, nil, "http://localhost:3000", log, rec)

	images, err := storage.NewLocalStore(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	users := repository.NewUserRepository(gdb)
	admins := repository.NewAdminRepository(gdb)
	workspaces := repository.NewWorkspaceRepository(gdb)
	projects := repository.NewProjectRepository(gdb)
	tasks := repository.NewTaskRepository(gdb)

	jwtService := auth.NewJWTService("router-test-secret", 15*time.Minute, time.Hour)
	tokenStore := auth.NewTokenStore(nil)

	activity := service.NewActivityLogger(repository.NewActivityRepository(gdb), log, rec)
	t.Cleanup(activity.Close)
	verifications := service.NewVerificationService(repository.NewVerificationRepository(gdb), jwtService, log, rec)
	authSvc := service.NewAuthService(users, admins, verifications, notifier, jwtService, tokenStore, nil, log)
	workspaceSvc := service.NewWorkspaceService(workspaces, users, notifier, jwtService, nil, log, rec)
	projectSvc := service.NewProjectService(projects, workspaces, users, activity, log, rec)
	taskSvc := service.NewTaskService(tasks, repository.NewCommentRepository(gdb), projects, workspaces, activity, log, rec)

	cfg := &config.Config{Server: config.ServerConfig{Port: "8080", CORSOrigins: []string{"*"}}}
	e := echo.New()
	Register(e, cfg, Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		User:      handler.NewUserHandler(service.NewUserService(users, tasks, nil, log)),
		Workspace: handler.NewWorkspaceHandler(workspaceSvc, projectSvc),
		Project:   handler.NewProjectHandler(projectSvc, taskSvc),
		Task:      handler.NewTaskHandler(taskSvc),
		Upload:    handler.NewUploadHandler(service.NewUploadService(images, log)),
	}, Deps{
		JWT:        jwtService,
		TokenStore: tokenStore,
		Users:      users,
		Admins:     admins,
		Gatherer:   registry,
		Logger:     log,
	})
	return &testServer{e: e, mailer: mailer, admins: admins}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != echo.MIMETextPlainCharsetUTF8 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

func TestRouter_SignupVerifyLoginFlow(t *testing.T) {
	s := newTestServer(t)
	email := "ann@example.com"
	creds := map[string]string{"email": email, "password": "secret1"}

	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["emailSent"])
	code := s.mailer.lastCode(email)
	require.Len(t, code, 6)

	status, body = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotContains(t, body, "accessToken")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status, body = s.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": email, "code": wrong})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["code"])

	status, _ = s.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": email, "code": code})
	require.Equal(t, http.StatusOK, status)

	// consumed codes cannot be replayed
	status, _ = s.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": email, "code": code})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, status)
	access, _ := body["accessToken"].(string)
	require.NotEmpty(t, access)
	assert.NotEmpty(t, body["refreshToken"])

	status, body = s.do(t, http.MethodGet, "/api/users/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, email, body["email"])

	status, _ = s.do(t, http.MethodGet, "/api/admin/users", access, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_TwoFactorLogin(t *testing.T) {
	s := newTestServer(t)
	email := "bo@example.com"
	creds := map[string]string{"email": email, "password": "secret1"}

	status, _ := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Bo", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status)
	status, _ = s.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": email, "code": s.mailer.lastCode(email)})
	require.Equal(t, http.StatusOK, status)

	_, body := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	access := body["accessToken"].(string)
	status, _ = s.do(t, http.MethodPut, "/api/users/me/2fa", access, map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["twoFactorRequired"])
	assert.NotContains(t, body, "accessToken")
	userID, _ := body["userId"].(string)
	require.NotEmpty(t, userID)

	status, body = s.do(t, http.MethodPost, "/api/auth/verify-2fa", "", map[string]string{
		"userId": userID, "code": s.mailer.lastCode(email),
	})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["accessToken"])
}

func TestRouter_AdminRoutes(t *testing.T) {
	s := newTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.admins.Create(context.Background(), &model.Admin{
		Name: "Root", Email: "root@taskhub.local", PasswordHash: string(hash),
	}))

	status, _ := s.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"email": "root@taskhub.local", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := s.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"email": "root@taskhub.local", "password": "admin-pass"})
	require.Equal(t, http.StatusOK, status)
	token := body["accessToken"].(string)

	status, _ = s.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/admin/workspaces", token, map[string]string{"name": "Ops"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Ops", body["name"])

	status, body = s.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isAdmin"])
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	status, _ = s.do(t, http.MethodGet, "/api/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])

	status, _ = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zap.NewNop())(errors.New("dial tcp 10.0.0.5:5432: connection refused"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestAuthRateLimiter(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, authRateLimiter(config.RateLimitConfig{AuthRPS: 0.001, AuthBurst: 2}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

var pathParam = regexp.MustCompile(`:(\w+)`)

func TestSwaggerDocCoversRoutes(t *testing.T) {
	s := newTestServer(t)

	var doc struct {
		BasePath string                                `json:"basePath"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))
	require.Equal(t, "/api", doc.BasePath)

	documented := 0
	for _, r := range s.e.Routes() {
		switch r.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			continue
		}
		if !strings.HasPrefix(r.Path, "/api/") {
			continue
		}
		path := pathParam.ReplaceAllString(strings.TrimPrefix(r.Path, "/api"), "{$1}")
		if assert.Contains(t, doc.Paths[path], strings.ToLower(r.Method), "%s %s", r.Method, r.Path) {
			documented++
		}
	}
	assert.Equal(t, 60, documented)
}
