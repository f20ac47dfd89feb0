package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub/internal/cache"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// UpdateProfileInput holds the optional profile fields to change.
type UpdateProfileInput struct {
	Name           *string
	Email          *string
	Phone          *string
	ProfilePicture *string
}

// UserService exposes profile and account operations.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*model.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
	SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool) (*model.User, error)
	MyTasks(ctx context.Context, id uuid.UUID) ([]model.Task, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo     repository.UserRepository
	tasks    repository.TaskRepository
	profiles profileCache
	logger   *zap.Logger
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, tasks repository.TaskRepository, cacheClient *cache.Client, logger *zap.Logger) UserService {
	return &userService{
		repo:     repo,
		tasks:    tasks,
		profiles: profileCache{client: cacheClient},
		logger:   orNop(logger).Named("user"),
	}
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if cached, ok := s.profiles.get(ctx, id); ok {
		return cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	s.profiles.set(ctx, user)
	return user, nil
}

// UpdateProfile applies the given fields. Changing e-mail or phone clears that
// channel's verified flag.
func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationError("name cannot be empty")
		}
		user.Name = name
	}
	if in.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*in.ProfilePicture)
	}
	var emailChanged, phoneChanged bool
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != "" && (user.Email == nil || *user.Email != email) {
			if err := s.ensureUnused(ctx, s.repo.FindByEmail, email, user.ID, apperrors.ErrEmailTaken); err != nil {
				return nil, err
			}
			user.Email = &email
			user.IsEmailVerified = false
			emailChanged = true
		}
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone != "" && (user.Phone == nil || *user.Phone != phone) {
			if err := s.ensureUnused(ctx, s.repo.FindByPhone, phone, user.ID, apperrors.ErrPhoneTaken); err != nil {
				return nil, err
			}
			user.Phone = &phone
			user.IsPhoneVerified = false
			phoneChanged = true
		}
	}

	if err := s.save(ctx, user); err != nil {
		if isDuplicate(err) {
			return nil, s.collision(ctx, user, emailChanged, phoneChanged)
		}
		return nil, err
	}
	return user, nil
}

// collision names the unique field another account claimed between the
// pre-check and the update.
func (s *userService) collision(ctx context.Context, user *model.User, emailChanged, phoneChanged bool) error {
	if phoneChanged && !emailChanged {
		return apperrors.ErrPhoneTaken
	}
	if phoneChanged && errors.Is(s.ensureUnused(ctx, s.repo.FindByPhone, *user.Phone, user.ID, apperrors.ErrPhoneTaken), apperrors.ErrPhoneTaken) {
		return apperrors.ErrPhoneTaken
	}
	return apperrors.ErrEmailTaken
}

func (s *userService) ensureUnused(ctx context.Context, find func(context.Context, string) (*model.User, error), value string, self uuid.UUID, taken error) error {
	other, err := find(ctx, value)
	if err == nil && other.ID != self {
		return taken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check existing user: %w", err)
	}
	return nil
}

func (s *userService) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperrors.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return s.save(ctx, user)
}

// SetTwoFactor toggles login codes. Enabling needs a verified channel to send them to.
func (s *userService) SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	if enabled && !user.IsEmailVerified && !user.IsPhoneVerified {
		return nil, apperrors.ErrNoChannel
	}
	user.TwoFactorEnabled = enabled
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) MyTasks(ctx context.Context, id uuid.UUID) ([]model.Task, error) {
	return s.tasks.ListByAssignee(ctx, id)
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// DeleteUser removes the user together with every membership, manager link and pending code.
func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	s.profiles.invalidate(ctx, id)
	s.logger.Info("user deleted", zap.Stringer("user_id", id))
	return nil
}

func (s *userService) save(ctx context.Context, user *model.User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	s.profiles.invalidate(ctx, user.ID)
	return nil
}
