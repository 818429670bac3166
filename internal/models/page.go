package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page belongs to a Tab and owns an ordered set of Sections.
type Page struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TabID      uuid.UUID `gorm:"type:uuid;not null;index" json:"tab_id"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	OrderIndex int       `gorm:"not null;default:0;index" json:"order_index"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Sections []Section `gorm:"constraint:OnDelete:CASCADE;foreignKey:PageID;references:ID" json:"sections,omitempty"`
}

func (p *Page) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
