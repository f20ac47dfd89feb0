package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskhub/internal/model"
)

// ActivityRepository defines activity log persistence operations.
type ActivityRepository interface {
	Create(ctx context.Context, entry *model.ActivityLog) error
	CreateBatch(ctx context.Context, entries []model.ActivityLog) error
	ListByResource(ctx context.Context, resourceType model.ResourceType, resourceID uuid.UUID, limit int) ([]model.ActivityLog, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity log repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateBatch inserts entries in chunks of 100.
func (r *activityRepository) CreateBatch(ctx context.Context, entries []model.ActivityLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

// ListByResource returns the newest entries first. A non-positive limit means no limit.
func (r *activityRepository) ListByResource(ctx context.Context, resourceType model.ResourceType, resourceID uuid.UUID, limit int) ([]model.ActivityLog, error) {
	q := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []model.ActivityLog
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
