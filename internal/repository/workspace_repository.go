package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskhub/internal/model"
)

// WorkspaceRepository defines workspace, membership, manager and invite persistence.
type WorkspaceRepository interface {
	Create(ctx context.Context, ws *model.Workspace) error
	Update(ctx context.Context, ws *model.Workspace) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Workspace, error)
	// FindByIDForUpdate locks the workspace row; use inside WithTransaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Workspace, error)
	List(ctx context.Context) ([]model.Workspace, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Workspace, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, member *model.WorkspaceMember) error
	UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role model.WorkspaceRole) error
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]model.WorkspaceMember, error)

	AddManager(ctx context.Context, workspaceID, userID uuid.UUID) error
	RemoveManager(ctx context.Context, workspaceID, userID uuid.UUID) error
	ListManagers(ctx context.Context, workspaceID uuid.UUID) ([]model.User, error)

	CreateInvite(ctx context.Context, invite *model.WorkspaceInvite) error
	FindInviteByToken(ctx context.Context, token string) (*model.WorkspaceInvite, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error
	DeleteInvitesFor(ctx context.Context, workspaceID, userID uuid.UUID) error
	DeleteExpiredInvites(ctx context.Context, before time.Time) (int64, error)

	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo WorkspaceRepository) error) error
}

type workspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new workspace repository.
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

func (r *workspaceRepository) Create(ctx context.Context, ws *model.Workspace) error {
	return r.db.WithContext(ctx).Omit("Managers", "Projects").Create(ws).Error
}

func (r *workspaceRepository) Update(ctx context.Context, ws *model.Workspace) error {
	return r.db.WithContext(ctx).Model(ws).
		Select("name", "description", "color").
		Updates(ws).Error
}

func (r *workspaceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	var ws model.Workspace
	if err := r.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&ws).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *workspaceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	var ws model.Workspace
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&ws).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", id).Find(&ws.Members).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *workspaceRepository) List(ctx context.Context) ([]model.Workspace, error) {
	var list []model.Workspace
	if err := r.db.WithContext(ctx).Preload("Members").Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListForUser returns workspaces the user is a member or a manager of.
func (r *workspaceRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Workspace, error) {
	memberOf := r.db.Model(&model.WorkspaceMember{}).Select("workspace_id").Where("user_id = ?", userID)
	managerOf := r.db.Model(&model.WorkspaceManager{}).Select("workspace_id").Where("user_id = ?", userID)

	var list []model.Workspace
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (?)", memberOf).
		Or("id IN (?)", managerOf).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Delete removes the workspace with its projects, tasks, memberships, manager links and invites.
func (r *workspaceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var projectIDs []uuid.UUID
		if err := tx.Model(&model.Project{}).Where("workspace_id = ?", id).Pluck("id", &projectIDs).Error; err != nil {
			return err
		}
		if err := deleteProjects(tx, projectIDs); err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&model.WorkspaceMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&model.WorkspaceInvite{}).Error; err != nil {
			return err
		}

		var managerIDs []uuid.UUID
		if err := tx.Model(&model.WorkspaceManager{}).Where("workspace_id = ?", id).Pluck("user_id", &managerIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&model.WorkspaceManager{}).Error; err != nil {
			return err
		}
		for _, uid := range managerIDs {
			if err := syncManagerFlag(tx, uid); err != nil {
				return err
			}
		}

		res := tx.Where("id = ?", id).Delete(&model.Workspace{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *workspaceRepository) AddMember(ctx context.Context, member *model.WorkspaceMember) error {
	return r.db.WithContext(ctx).Omit("User").Create(member).Error
}

func (r *workspaceRepository) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role model.WorkspaceRole) error {
	res := r.db.WithContext(ctx).Model(&model.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *workspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&model.WorkspaceMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *workspaceRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]model.WorkspaceMember, error) {
	var members []model.WorkspaceMember
	if err := r.db.WithContext(ctx).Preload("User").
		Where("workspace_id = ?", workspaceID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// AddManager records the manager link and raises the user's IsWorkspaceManager flag.
// Adding an existing link is a no-op.
func (r *workspaceRepository) AddManager(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link := model.WorkspaceManager{UserID: userID, WorkspaceID: workspaceID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
		return syncManagerFlag(tx, userID)
	})
}

// RemoveManager drops the manager link and recomputes the user's IsWorkspaceManager flag.
func (r *workspaceRepository) RemoveManager(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).Delete(&model.WorkspaceManager{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return syncManagerFlag(tx, userID)
	})
}

func (r *workspaceRepository) ListManagers(ctx context.Context, workspaceID uuid.UUID) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN workspace_managers ON workspace_managers.user_id = users.id").
		Where("workspace_managers.workspace_id = ?", workspaceID).
		Order("users.name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *workspaceRepository) CreateInvite(ctx context.Context, invite *model.WorkspaceInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *workspaceRepository) FindInviteByToken(ctx context.Context, token string) (*model.WorkspaceInvite, error) {
	var invite model.WorkspaceInvite
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *workspaceRepository) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.WorkspaceInvite{}).Error
}

func (r *workspaceRepository) DeleteInvitesFor(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&model.WorkspaceInvite{}).Error
}

func (r *workspaceRepository) DeleteExpiredInvites(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&model.WorkspaceInvite{})
	return res.RowsAffected, res.Error
}

// WithTransaction executes a function within a database transaction.
func (r *workspaceRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo WorkspaceRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &workspaceRepository{db: tx})
	})
}

// syncManagerFlag sets users.is_workspace_manager from the presence of any manager link.
func syncManagerFlag(tx *gorm.DB, userID uuid.UUID) error {
	var n int64
	if err := tx.Model(&model.WorkspaceManager{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	return tx.Model(&model.User{}).Where("id = ?", userID).Update("is_workspace_manager", n > 0).Error
}
