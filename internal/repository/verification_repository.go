package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskhub/internal/model"
)

// VerificationRepository stores pending codes and reset tokens.
type VerificationRepository interface {
	Create(ctx context.Context, v *model.Verification) error
	Find(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose) (*model.Verification, error)
	// Delete removes the row by id and reports how many rows were removed.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteFor(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository creates a new verification repository.
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, v *model.Verification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *verificationRepository) Find(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose) (*model.Verification, error) {
	var v model.Verification
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ?", userID, purpose).
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *verificationRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Verification{})
	return res.RowsAffected, res.Error
}

func (r *verificationRepository) DeleteFor(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ?", userID, purpose).
		Delete(&model.Verification{}).Error
}

func (r *verificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&model.Verification{})
	return res.RowsAffected, res.Error
}
