package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectStatus is the lifecycle status of a project.
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// ProjectRole is a member's role inside a project.
type ProjectRole string

const (
	ProjectRoleManager     ProjectRole = "manager"
	ProjectRoleContributor ProjectRole = "contributor"
	ProjectRoleViewer      ProjectRole = "viewer"
	// ProjectRoleAdmin and ProjectRoleOwner are honoured by task checks but never assignable.
	ProjectRoleAdmin ProjectRole = "admin"
	ProjectRoleOwner ProjectRole = "owner"
)

// Project belongs to a workspace and holds tasks.
type Project struct {
	ID          uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	WorkspaceID uuid.UUID     `json:"workspaceId" gorm:"type:char(36);not null;index"`
	Title       string        `json:"title" gorm:"size:255;not null"`
	Description string        `json:"description" gorm:"type:text"`
	Status      ProjectStatus `json:"status" gorm:"type:varchar(20);not null;default:'planning';index"`
	StartDate   *time.Time    `json:"startDate,omitempty"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	CreatedBy   *uuid.UUID    `json:"createdBy,omitempty" gorm:"type:char(36)"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	Members []ProjectMember `json:"members,omitempty" gorm:"foreignKey:ProjectID"`
	Tasks   []Task          `json:"tasks,omitempty" gorm:"foreignKey:ProjectID"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Member returns the membership entry of userID, if any.
func (p *Project) Member(userID uuid.UUID) (*ProjectMember, bool) {
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	ID        uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	ProjectID uuid.UUID   `json:"projectId" gorm:"type:char(36);not null;uniqueIndex:idx_project_member"`
	UserID    uuid.UUID   `json:"userId" gorm:"type:char(36);not null;uniqueIndex:idx_project_member;index"`
	Role      ProjectRole `json:"role" gorm:"type:varchar(20);not null;default:'contributor'"`
	CreatedAt time.Time   `json:"createdAt"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// BeforeCreate sets UUID before creating the record.
func (m *ProjectMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
