package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered TaskHub user.
type User struct {
	ID                 uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name               string    `json:"name" gorm:"size:255;not null"`
	Email              *string   `json:"email,omitempty" gorm:"uniqueIndex;size:255"`
	Phone              *string   `json:"phone,omitempty" gorm:"uniqueIndex;size:32"`
	PasswordHash       string    `json:"-" gorm:"size:255;not null"`
	IsEmailVerified    bool      `json:"isEmailVerified" gorm:"default:false"`
	IsPhoneVerified    bool      `json:"isPhoneVerified" gorm:"default:false"`
	TwoFactorEnabled   bool      `json:"twoFactorEnabled" gorm:"default:false"`
	ProfilePicture     string    `json:"profilePicture,omitempty" gorm:"size:1024"`
	IsWorkspaceManager bool      `json:"isWorkspaceManager" gorm:"default:false;index"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	// ManagedWorkspaces is the back-reference side of the workspace_managers index.
	ManagedWorkspaces []Workspace `json:"managedWorkspaces,omitempty" gorm:"many2many:workspace_managers;"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ManagedWorkspaceIDs returns the ids of the workspaces this user manages.
func (u *User) ManagedWorkspaceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(u.ManagedWorkspaces))
	for _, w := range u.ManagedWorkspaces {
		ids = append(ids, w.ID)
	}
	return ids
}

// IsVerified reports whether every channel the user registered with has been verified.
// A user with only a phone number is verified through the phone channel.
func (u *User) IsVerified() bool {
	if u.Email != nil && *u.Email != "" {
		return u.IsEmailVerified
	}
	if u.Phone != nil && *u.Phone != "" {
		return u.IsPhoneVerified
	}
	return false
}

// Admin is the master administrator identity. It has no membership relations.
type Admin struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
