package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tab is the top level of the content hierarchy.
type Tab struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	OrderIndex int       `gorm:"not null;default:0;index" json:"order_index"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Pages []Page `gorm:"constraint:OnDelete:CASCADE;foreignKey:TabID;references:ID" json:"pages,omitempty"`
}

func (t *Tab) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
