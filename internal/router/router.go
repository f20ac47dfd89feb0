package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"taskhub/internal/auth"
	"taskhub/internal/config"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/handler"
	"taskhub/internal/logger"
	"taskhub/internal/metrics"
)

const maxBodySize = "6M"

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Workspace *handler.WorkspaceHandler
	Project   *handler.ProjectHandler
	Task      *handler.TaskHandler
	Upload    *handler.UploadHandler
}

// Deps are the collaborators the auth middleware and ops endpoints need.
type Deps struct {
	JWT        *auth.JWTService
	TokenStore auth.TokenStoreInterface
	Users      auth.UserLoader
	Admins     auth.AdminLoader
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
	// UploadDir, when set, is served under /uploads for the local image store.
	UploadDir string
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, h Handlers, d Deps) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = ErrorHandler(log)

	e.Use(middleware.RequestID())
	e.Use(logger.EchoMiddleware(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(maxBodySize))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if d.UploadDir != "" {
		e.Static("/uploads", d.UploadDir)
	}

	api := e.Group("/api")

	// Public routes
	authGroup := api.Group("/auth", authRateLimiter(cfg.RateLimit))
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/verify-2fa", h.Auth.VerifyTwoFactor)
	authGroup.POST("/verify-email", h.Auth.VerifyEmail)
	authGroup.POST("/verify-phone", h.Auth.VerifyPhone)
	authGroup.POST("/send-verification", h.Auth.SendVerification)
	authGroup.POST("/resend-verification", h.Auth.ResendVerification)
	authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
	authGroup.POST("/reset-password", h.Auth.ResetPassword)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", h.Auth.Logout)
	api.POST("/admin/login", h.Auth.AdminLogin, authRateLimiter(cfg.RateLimit))

	// Secured routes (require JWT authentication)
	secured := api.Group("", auth.JWTMiddleware(d.JWT), auth.LoadPrincipal(d.TokenStore, d.Users, d.Admins))

	users := secured.Group("/users")
	users.GET("/me", h.User.Me)
	users.PUT("/me", h.User.UpdateMe)
	users.PUT("/me/password", h.User.ChangePassword)
	users.PUT("/me/2fa", h.User.SetTwoFactor)
	users.GET("/me/tasks", h.User.MyTasks)
	users.GET("/:id", h.User.GetUser)

	workspaces := secured.Group("/workspaces")
	workspaces.GET("", h.Workspace.List)
	workspaces.POST("/invites/accept", h.Workspace.AcceptInvite)
	workspaces.GET("/:id", h.Workspace.Get)
	workspaces.PUT("/:id", h.Workspace.Update)
	workspaces.DELETE("/:id", h.Workspace.Delete)
	workspaces.POST("/:id/invites", h.Workspace.Invite)
	workspaces.GET("/:id/members", h.Workspace.Members)
	workspaces.POST("/:id/members", h.Workspace.AddMember)
	workspaces.PUT("/:id/members/:userId", h.Workspace.UpdateMemberRole)
	workspaces.DELETE("/:id/members/:userId", h.Workspace.RemoveMember)
	workspaces.GET("/:id/managers", h.Workspace.Managers)
	workspaces.GET("/:id/projects", h.Workspace.Projects)
	workspaces.POST("/:id/projects", h.Workspace.CreateProject)

	projects := secured.Group("/projects")
	projects.GET("/:id", h.Project.Get)
	projects.PUT("/:id", h.Project.Update)
	projects.PUT("/:id/details", h.Project.UpdateDetails)
	projects.DELETE("/:id", h.Project.Delete)
	projects.POST("/:id/members", h.Project.AddMember)
	projects.PUT("/:id/members/:userId", h.Project.UpdateMemberRole)
	projects.DELETE("/:id/members/:userId", h.Project.RemoveMember)
	projects.GET("/:id/tasks", h.Project.Tasks)
	projects.POST("/:id/tasks", h.Project.CreateTask)
	projects.GET("/:id/activity", h.Project.Activity)

	tasks := secured.Group("/tasks")
	tasks.DELETE("/comments/:commentId", h.Task.DeleteComment)
	tasks.GET("/:id", h.Task.Get)
	tasks.PUT("/:id", h.Task.Update)
	tasks.DELETE("/:id", h.Task.Delete)
	tasks.POST("/:id/subtasks", h.Task.AddSubtask)
	tasks.PUT("/:id/subtasks/:subtaskId", h.Task.UpdateSubtask)
	tasks.POST("/:id/watch", h.Task.ToggleWatch)
	tasks.POST("/:id/archive", h.Task.ToggleArchive)
	tasks.GET("/:id/comments", h.Task.Comments)
	tasks.POST("/:id/comments", h.Task.AddComment)
	tasks.GET("/:id/activity", h.Task.Activity)

	secured.POST("/upload/image", h.Upload.UploadImage)

	admin := secured.Group("/admin", auth.RequireAdmin())
	admin.GET("/users", h.User.ListUsers)
	admin.DELETE("/users/:id", h.User.DeleteUser)
	admin.GET("/workspaces", h.Workspace.List)
	admin.POST("/workspaces", h.Workspace.Create)
	admin.POST("/workspaces/:id/members", h.Workspace.AddMember)
	admin.PUT("/workspaces/:id/managers", h.Workspace.AssignManager)
	admin.DELETE("/workspaces/:id/managers/:userId", h.Workspace.RemoveManager)
}

// authRateLimiter throttles per client IP with an in-memory token bucket.
func authRateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.AuthRPS <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(cfg.AuthRPS),
		Burst: cfg.AuthBurst,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.NewHTTPError(http.StatusForbidden, "unable to identify client", "RATE_LIMIT_ERROR")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperrors.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later", "RATE_LIMITED")
		},
	})
}

// ErrorHandler writes every handler error as {error, code}. Unknown errors are logged
// and reported as a generic 500.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var resp apperrors.ErrorResponse
		status := http.StatusInternalServerError

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			resp = apperrors.ErrorResponse{Error: http.StatusText(he.Code), Code: echoCode(he.Code)}
			if msg, ok := he.Message.(string); ok {
				resp.Error = msg
			}
		} else {
			mapped := apperrors.MapErrorToHTTP(err)
			status = mapped.StatusCode
			resp = mapped.ToErrorResponse()
		}

		if status >= http.StatusInternalServerError {
			logger.FromContext(c, log).Error("request failed", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, resp)
		}
		if err != nil {
			log.Warn("failed to write error response", zap.Error(err))
		}
	}
}

func echoCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
