package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskhub/internal/model"
)

// TaskRepository defines task, subtask, assignee and watcher persistence.
type TaskRepository interface {
	// Create inserts the task with its assignee links atomically.
	Create(ctx context.Context, task *model.Task, assigneeIDs []uuid.UUID) error
	Update(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, includeArchived bool) ([]model.Task, error)
	ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ReplaceAssignees(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error
	AddWatcher(ctx context.Context, taskID, userID uuid.UUID) error
	RemoveWatcher(ctx context.Context, taskID, userID uuid.UUID) error

	CreateSubtask(ctx context.Context, subtask *model.Subtask) error
	FindSubtask(ctx context.Context, taskID, subtaskID uuid.UUID) (*model.Subtask, error)
	UpdateSubtask(ctx context.Context, subtask *model.Subtask) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task, assigneeIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Assignees", "Watchers", "Subtasks").Create(task).Error; err != nil {
			return err
		}
		return insertAssignees(tx, task.ID, assigneeIDs)
	})
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Model(task).
		Select("title", "description", "status", "priority", "due_date", "is_archived").
		Updates(task).Error
}

func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Preload("Assignees").
		Preload("Watchers").
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ListByProject(ctx context.Context, projectID uuid.UUID, includeArchived bool) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Preload("Assignees").Where("project_id = ?", projectID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var list []model.Task
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *taskRepository) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	var list []model.Task
	err := r.db.WithContext(ctx).
		Preload("Assignees").
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ? AND tasks.is_archived = ?", userID, false).
		Order("tasks.due_date ASC, tasks.created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteTasks(tx, []uuid.UUID{id})
	})
}

func (r *taskRepository) ReplaceAssignees(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&model.TaskAssignee{}).Error; err != nil {
			return err
		}
		return insertAssignees(tx, taskID, userIDs)
	})
}

func (r *taskRepository) AddWatcher(ctx context.Context, taskID, userID uuid.UUID) error {
	w := model.TaskWatcher{TaskID: taskID, UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&w).Error
}

func (r *taskRepository) RemoveWatcher(ctx context.Context, taskID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&model.TaskWatcher{}).Error
}

func (r *taskRepository) CreateSubtask(ctx context.Context, subtask *model.Subtask) error {
	return r.db.WithContext(ctx).Create(subtask).Error
}

func (r *taskRepository) FindSubtask(ctx context.Context, taskID, subtaskID uuid.UUID) (*model.Subtask, error) {
	var st model.Subtask
	if err := r.db.WithContext(ctx).Where("id = ? AND task_id = ?", subtaskID, taskID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *taskRepository) UpdateSubtask(ctx context.Context, subtask *model.Subtask) error {
	return r.db.WithContext(ctx).Model(subtask).
		Select("title", "completed").
		Updates(subtask).Error
}

func insertAssignees(tx *gorm.DB, taskID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]model.TaskAssignee, 0, len(userIDs))
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, model.TaskAssignee{TaskID: taskID, UserID: id})
	}
	return tx.Create(&rows).Error
}

// CommentRepository defines comment persistence operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Comment, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Omit("Author").Create(comment).Error
}

func (r *commentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error) {
	var list []model.Comment
	if err := r.db.WithContext(ctx).Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
