package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkspaceRole is a member's role inside a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleMember WorkspaceRole = "member"
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
	WorkspaceRoleViewer WorkspaceRole = "viewer"
	// WorkspaceRoleOwner is accepted by authorization checks but no request can assign it.
	WorkspaceRoleOwner WorkspaceRole = "owner"
)

// Workspace groups projects and the members allowed to work on them.
type Workspace struct {
	ID          uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Name        string     `json:"name" gorm:"size:255;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Color       string     `json:"color" gorm:"size:32;default:'#3b82f6'"`
	OwnerID     *uuid.UUID `json:"ownerId,omitempty" gorm:"type:char(36);index"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Members  []WorkspaceMember `json:"members,omitempty" gorm:"foreignKey:WorkspaceID"`
	Projects []Project         `json:"projects,omitempty" gorm:"foreignKey:WorkspaceID"`
	Managers []User            `json:"managers,omitempty" gorm:"many2many:workspace_managers;"`
}

// BeforeCreate sets UUID before creating the record.
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Member returns the membership entry of userID, if any.
func (w *Workspace) Member(userID uuid.UUID) (*WorkspaceMember, bool) {
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			return &w.Members[i], true
		}
	}
	return nil, false
}

// NonAdminMemberCount counts members whose workspace role is not admin.
func (w *Workspace) NonAdminMemberCount() int {
	n := 0
	for _, m := range w.Members {
		if m.Role != WorkspaceRoleAdmin {
			n++
		}
	}
	return n
}

// WorkspaceMember links a user to a workspace with a role.
type WorkspaceMember struct {
	ID          uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	WorkspaceID uuid.UUID     `json:"workspaceId" gorm:"type:char(36);not null;uniqueIndex:idx_workspace_member"`
	UserID      uuid.UUID     `json:"userId" gorm:"type:char(36);not null;uniqueIndex:idx_workspace_member;index"`
	Role        WorkspaceRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt    time.Time     `json:"joinedAt"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// BeforeCreate sets UUID and join time before creating the record.
func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return nil
}

// WorkspaceManager is the explicit index row behind User.ManagedWorkspaces and Workspace.Managers.
type WorkspaceManager struct {
	UserID      uuid.UUID `gorm:"type:char(36);primaryKey"`
	WorkspaceID uuid.UUID `gorm:"type:char(36);primaryKey;index"`
}

// WorkspaceInvite is a pending invitation of an existing user into a workspace.
type WorkspaceInvite struct {
	ID          uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	UserID      uuid.UUID     `json:"userId" gorm:"type:char(36);not null;index"`
	WorkspaceID uuid.UUID     `json:"workspaceId" gorm:"type:char(36);not null;index"`
	Token       string        `json:"-" gorm:"type:varchar(512);not null;uniqueIndex"`
	Role        WorkspaceRole `json:"role" gorm:"type:varchar(20);not null"`
	ExpiresAt   time.Time     `json:"expiresAt" gorm:"index"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// BeforeCreate sets UUID and stores the expiry in UTC.
func (i *WorkspaceInvite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	i.ExpiresAt = i.ExpiresAt.UTC()
	return nil
}

// Expired reports whether the invite is past its expiry at now.
func (i *WorkspaceInvite) Expired(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}
