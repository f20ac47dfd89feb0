package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "taskhub/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/db"
	"taskhub/internal/handler"
	"taskhub/internal/logger"
	"taskhub/internal/metrics"
	"taskhub/internal/notify"
	"taskhub/internal/repository"
	"taskhub/internal/router"
	"taskhub/internal/service"
	"taskhub/internal/storage"
	"taskhub/internal/worker/cleanup"
)

const localUploadDir = "uploads"

// @title TaskHub API
// @version 1.0
// @description Multi-tenant workspace, project and task management API with JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	gormDB, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level)))
	if err != nil {
		log.Fatal("database init", zap.Error(err))
	}
	defer func() { _ = db.Close(gormDB) }()

	if cfg.Database.Reset {
		log.Warn("database.reset is set, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Fatal("reset database", zap.Error(err))
		}
	} else if err := db.Migrate(gormDB); err != nil {
		log.Fatal("auto-migrate", zap.Error(err))
	}

	cacheClient := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.Warn("redis unavailable, refresh tokens and caching are disabled", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(registry)

	notifier := notify.New(mailer(cfg, log), smsSender(cfg, log), cfg.Mail.AppURL, log, rec)

	images, uploadDir, err := imageStore(cfg, log)
	if err != nil {
		log.Fatal("storage init", zap.Error(err))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	adminRepo := repository.NewAdminRepository(gormDB)
	workspaceRepo := repository.NewWorkspaceRepository(gormDB)
	projectRepo := repository.NewProjectRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)
	commentRepo := repository.NewCommentRepository(gormDB)
	activityRepo := repository.NewActivityRepository(gormDB)
	verificationRepo := repository.NewVerificationRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	activity := service.NewActivityLogger(activityRepo, log, rec)
	verifications := service.NewVerificationService(verificationRepo, jwtService, log, rec)
	authService := service.NewAuthService(userRepo, adminRepo, verifications, notifier, jwtService, tokenStore, cacheClient, log)
	userService := service.NewUserService(userRepo, taskRepo, cacheClient, log)
	workspaceService := service.NewWorkspaceService(workspaceRepo, userRepo, notifier, jwtService, cacheClient, log, rec)
	projectService := service.NewProjectService(projectRepo, workspaceRepo, userRepo, activity, log, rec)
	taskService := service.NewTaskService(taskRepo, commentRepo, projectRepo, workspaceRepo, activity, log, rec)
	uploadService := service.NewUploadService(images, log)

	e := echo.New()
	router.Register(e, cfg, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		User:      handler.NewUserHandler(userService),
		Workspace: handler.NewWorkspaceHandler(workspaceService, projectService),
		Project:   handler.NewProjectHandler(projectService, taskService),
		Task:      handler.NewTaskHandler(taskService),
		Upload:    handler.NewUploadHandler(uploadService),
	}, router.Deps{
		JWT:        jwtService,
		TokenStore: tokenStore,
		Users:      userRepo,
		Admins:     adminRepo,
		Gatherer:   registry,
		Logger:     log,
		UploadDir:  uploadDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cleanup.Enabled {
		job := cleanup.NewJob(verificationRepo, workspaceRepo, log, rec)
		go job.Start(ctx, cfg.Cleanup.Interval)
	}

	log.Info("swagger documentation available", zap.String("url", swaggerURL(cfg)))

	go func() {
		addr := ":" + cfg.Server.Port
		log.Info("http server starting", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	activity.Close()
}

func mailer(cfg *config.Config, log *zap.Logger) notify.Mailer {
	if cfg.Mail.APIKey == "" {
		log.Info("mail.api_key not set, e-mails are logged instead of sent")
		return notify.NewLogTransport(log)
	}
	return notify.NewResendMailer(cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.BaseURL)
}

func smsSender(cfg *config.Config, log *zap.Logger) notify.SMSSender {
	if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" {
		log.Info("sms credentials not set, text messages are logged instead of sent")
		return notify.NewLogTransport(log)
	}
	return notify.NewTwilioSMS(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From, cfg.SMS.BaseURL)
}

// imageStore selects S3 when a bucket is configured and a local directory otherwise.
// The returned directory is non-empty only for the local store.
func imageStore(cfg *config.Config, log *zap.Logger) (storage.ImageStore, string, error) {
	if cfg.Storage.Bucket == "" {
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			base = "http://localhost:" + cfg.Server.Port + "/uploads"
		}
		local, err := storage.NewLocalStore(localUploadDir, base)
		if err != nil {
			return nil, "", err
		}
		log.Info("storage.bucket not set, images are stored locally", zap.String("dir", local.Dir()))
		return local, local.Dir(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		Bucket:        cfg.Storage.Bucket,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		UsePathStyle:  cfg.Storage.UsePathStyle,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	}, storage.WithLogger(log))
	if err != nil {
		return nil, "", err
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		log.Warn("could not ensure storage bucket", zap.Error(err))
	}
	return s3Store, "", nil
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.Swagger.Host
	if host == "" {
		host = "localhost:" + cfg.Server.Port
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/") + "/swagger/index.html"
}
