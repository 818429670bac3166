package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog captures notable authentication events.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index"`
	Action     string     `gorm:"type:text;not null"`
	TargetType string     `gorm:"type:text;not null"`
	TargetID   *string    `gorm:"type:text"`
	Metadata   datatypes.JSONMap
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
