package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StorageLocation is a named root directory offered as an upload destination.
type StorageLocation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null;uniqueIndex:idx_storage_location_name_path" json:"name"`
	StorageType string    `gorm:"type:text;not null" json:"storage_type"`
	Path        string    `gorm:"type:text;not null;uniqueIndex:idx_storage_location_name_path" json:"path"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l *StorageLocation) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
