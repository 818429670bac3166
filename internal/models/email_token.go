package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailVerificationToken proves control of an email address before an
// account exists, so it is keyed by email rather than by user. Used means the
// token can no longer be verified; only VerifiedAt allows registration, so a
// token superseded by a newer request is used but never verified.
type EmailVerificationToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email      string     `gorm:"type:text;not null;index"`
	Token      string     `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt  time.Time  `gorm:"not null"`
	Used       bool       `gorm:"not null;default:false"`
	VerifiedAt *time.Time `gorm:"default:null"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
}

func (t *EmailVerificationToken) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
