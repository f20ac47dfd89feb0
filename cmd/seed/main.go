package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub/internal/config"
	"taskhub/internal/db"
	"taskhub/internal/logger"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

const demoPassword = "password123"

type demoUser struct {
	name  string
	email string
}

var demoUsers = []demoUser{
	{"Alice Manager", "alice@taskhub.local"},
	{"Bob Builder", "bob@taskhub.local"},
	{"Carol Viewer", "carol@taskhub.local"},
}

func main() {
	demo := flag.Bool("demo", false, "also create demo users, a workspace, a project and tasks")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	gormDB, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, nil)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close(gormDB) }()

	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	ctx := context.Background()
	admins := repository.NewAdminRepository(gormDB)
	admin, created, err := seedAdmin(ctx, admins, cfg.Admin)
	if err != nil {
		log.Fatal("failed to seed master admin", zap.Error(err))
	}
	log.Info("master admin ready", zap.String("email", admin.Email), zap.Bool("created", created))

	if !*demo {
		return
	}
	if err := seedDemo(ctx, gormDB, admin, log); err != nil {
		log.Fatal("failed to seed demo data", zap.Error(err))
	}
	log.Info("demo data seeded", zap.String("password", demoPassword))
}

// seedAdmin creates the master admin or updates the existing one's name and password.
func seedAdmin(ctx context.Context, repo repository.AdminRepository, cfg config.AdminConfig) (*model.Admin, bool, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, false, errors.New("admin.email and admin.password must be set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	existing, err := repo.FindByEmail(ctx, cfg.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("error checking admin %s: %w", cfg.Email, err)
	}
	if existing != nil {
		existing.Name = cfg.Name
		existing.PasswordHash = string(hash)
		if err := repo.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("error updating admin: %w", err)
		}
		return existing, false, nil
	}

	admin := &model.Admin{Name: cfg.Name, Email: cfg.Email, PasswordHash: string(hash)}
	if err := repo.Create(ctx, admin); err != nil {
		return nil, false, fmt.Errorf("error creating admin: %w", err)
	}
	return admin, true, nil
}

// seedDemo builds a small workspace through the services so the usual rules and
// activity logging apply. It is skipped when the demo users already exist.
func seedDemo(ctx context.Context, gormDB *gorm.DB, admin *model.Admin, log *zap.Logger) error {
	users := repository.NewUserRepository(gormDB)
	workspaces := repository.NewWorkspaceRepository(gormDB)
	projects := repository.NewProjectRepository(gormDB)

	if _, err := users.FindByEmail(ctx, demoUsers[0].email); err == nil {
		log.Info("demo users already exist, skipping demo data")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	created := make([]*model.User, 0, len(demoUsers))
	for _, du := range demoUsers {
		email := du.email
		u := &model.User{Name: du.name, Email: &email, PasswordHash: string(hash), IsEmailVerified: true}
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", du.email, err)
		}
		created = append(created, u)
	}
	alice, bob, carol := created[0], created[1], created[2]

	activity := service.NewActivityLogger(repository.NewActivityRepository(gormDB), log, nil)
	defer activity.Close()

	workspaceSvc := service.NewWorkspaceService(workspaces, users, nil, nil, nil, log, nil)
	projectSvc := service.NewProjectService(projects, workspaces, users, activity, log, nil)
	taskSvc := service.NewTaskService(repository.NewTaskRepository(gormDB), repository.NewCommentRepository(gormDB), projects, workspaces, activity, log, nil)

	p := policy.AdminPrincipal(admin.ID)
	ws, err := workspaceSvc.Create(ctx, p, service.CreateWorkspaceInput{Name: "Demo Workspace", Description: "Seeded sample data"})
	if err != nil {
		return err
	}
	if err := workspaceSvc.AssignManager(ctx, p, ws.ID, alice.ID); err != nil {
		return err
	}
	if _, err := workspaceSvc.AddMember(ctx, p, ws.ID, bob.ID, model.WorkspaceRoleMember); err != nil {
		return err
	}
	if _, err := workspaceSvc.AddMember(ctx, p, ws.ID, carol.ID, model.WorkspaceRoleViewer); err != nil {
		return err
	}

	project, err := projectSvc.Create(ctx, p, ws.ID, service.CreateProjectInput{
		Title:       "Website Relaunch",
		Description: "Redesign and relaunch the marketing site",
		Members: []service.MemberInput{
			{UserID: alice.ID, Role: model.ProjectRoleManager},
			{UserID: bob.ID, Role: model.ProjectRoleContributor},
			{UserID: carol.ID, Role: model.ProjectRoleViewer},
		},
	})
	if err != nil {
		return err
	}

	tasks := []service.CreateTaskInput{
		{Title: "Draft sitemap", Priority: model.TaskPriorityHigh, Assignees: []uuid.UUID{alice.ID}},
		{Title: "Build landing page", Status: model.TaskStatusInProgress, Assignees: []uuid.UUID{bob.ID}},
		{Title: "Write launch announcement", Priority: model.TaskPriorityLow},
	}
	for _, in := range tasks {
		if _, err := taskSvc.Create(ctx, p, project.ID, in); err != nil {
			return err
		}
	}
	return nil
}
