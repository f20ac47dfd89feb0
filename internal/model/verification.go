package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationPurpose distinguishes what a stored code or token unlocks.
type VerificationPurpose string

const (
	PurposeEmail         VerificationPurpose = "email"
	PurposePhone         VerificationPurpose = "phone"
	PurposeLogin2FA      VerificationPurpose = "login_2fa"
	PurposeResetPassword VerificationPurpose = "reset_password"
)

// Verification holds at most one active code per user and purpose.
type Verification struct {
	ID        uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID           `json:"userId" gorm:"type:char(36);not null;uniqueIndex:idx_verification_user_purpose"`
	Purpose   VerificationPurpose `json:"purpose" gorm:"type:varchar(20);not null;uniqueIndex:idx_verification_user_purpose"`
	Token     string              `json:"-" gorm:"type:varchar(512);not null"`
	ExpiresAt time.Time           `json:"expiresAt" gorm:"index"`
	CreatedAt time.Time           `json:"createdAt"`
}

// BeforeCreate sets UUID and stores the expiry in UTC.
func (v *Verification) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.ExpiresAt = v.ExpiresAt.UTC()
	return nil
}

// Expired reports whether the code is past its expiry at now.
func (v *Verification) Expired(now time.Time) bool {
	return v.ExpiresAt.Before(now)
}
