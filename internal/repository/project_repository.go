package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskhub/internal/model"
)

// ProjectRepository defines project and project membership persistence.
type ProjectRepository interface {
	// Create inserts the project and its initial members atomically.
	Create(ctx context.Context, project *model.Project) error
	Update(ctx context.Context, project *model.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, member *model.ProjectMember) error
	UpdateMemberRole(ctx context.Context, projectID, userID uuid.UUID, role model.ProjectRole) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]model.ProjectMember, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := project.Members
		if err := tx.Omit("Members", "Tasks").Create(project).Error; err != nil {
			return err
		}
		for i := range members {
			members[i].ProjectID = project.ID
			if err := tx.Omit("User").Create(&members[i]).Error; err != nil {
				return err
			}
		}
		project.Members = members
		return nil
	})
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Model(project).
		Select("title", "description", "status", "start_date", "due_date").
		Updates(project).Error
}

func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.Project, error) {
	var list []model.Project
	if err := r.db.WithContext(ctx).Preload("Members").
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Delete removes the project together with its tasks and memberships.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteProjects(tx, []uuid.UUID{id})
	})
}

func (r *projectRepository) AddMember(ctx context.Context, member *model.ProjectMember) error {
	return r.db.WithContext(ctx).Omit("User").Create(member).Error
}

func (r *projectRepository) UpdateMemberRole(ctx context.Context, projectID, userID uuid.UUID, role model.ProjectRole) error {
	res := r.db.WithContext(ctx).Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]model.ProjectMember, error) {
	var members []model.ProjectMember
	if err := r.db.WithContext(ctx).Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// deleteProjects removes projects, their memberships and every task under them.
func deleteProjects(tx *gorm.DB, projectIDs []uuid.UUID) error {
	if len(projectIDs) == 0 {
		return nil
	}
	var taskIDs []uuid.UUID
	if err := tx.Model(&model.Task{}).Where("project_id IN ?", projectIDs).Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	if err := deleteTasks(tx, taskIDs); err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&model.ProjectMember{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", projectIDs).Delete(&model.Project{}).Error
}

// deleteTasks removes tasks with their subtasks, comments, assignees and watchers.
func deleteTasks(tx *gorm.DB, taskIDs []uuid.UUID) error {
	if len(taskIDs) == 0 {
		return nil
	}
	for _, m := range []interface{}{
		&model.Comment{},
		&model.Subtask{},
		&model.TaskAssignee{},
		&model.TaskWatcher{},
	} {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(m).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", taskIDs).Delete(&model.Task{}).Error
}
