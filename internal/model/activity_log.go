package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResourceType names the kind of resource an activity entry refers to.
type ResourceType string

const (
	ResourceWorkspace ResourceType = "workspace"
	ResourceProject   ResourceType = "project"
	ResourceTask      ResourceType = "task"
)

// ActivityLog is an append-only, human-readable record of a mutation.
type ActivityLog struct {
	ID           uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	ActorID      uuid.UUID    `json:"actorId" gorm:"type:char(36);not null;index"`
	Action       string       `json:"action" gorm:"type:varchar(50);not null"`
	ResourceType ResourceType `json:"resourceType" gorm:"type:varchar(20);not null;index:idx_activity_resource"`
	ResourceID   uuid.UUID    `json:"resourceId" gorm:"type:char(36);not null;index:idx_activity_resource"`
	Details      string       `json:"details" gorm:"type:text"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
