package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wownote/internal/content"
)

// Section is a canvas widget on a Page. ContentData holds the JSON encoding of
// the content.Payload variant selected by ContentType.
type Section struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PageID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"page_id"`
	Name        *string        `gorm:"type:text" json:"name"`
	ContentType content.Type   `gorm:"type:text;not null;default:'text'" json:"content_type"`
	ContentData datatypes.JSON `json:"content_data"`
	Memo        *string        `gorm:"type:text" json:"memo"`
	OrderIndex  int            `gorm:"not null;default:0;index" json:"order_index"`
	Width       int            `gorm:"not null" json:"width"`
	Height      int            `gorm:"not null" json:"height"`
	PositionX   int            `gorm:"not null" json:"position_x"`
	PositionY   int            `gorm:"not null" json:"position_y"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Section) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
