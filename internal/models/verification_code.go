package models

import (
	"time"

	"gorm.io/gorm"
)

// VerificationCode is a one-time code bound to an email address. At most one
// row per email is active (not soft-deleted) at a time.
type VerificationCode struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(255);not null;index"`
	Code      string         `json:"-" gorm:"type:varchar(8);not null"`
	ExpiresAt time.Time      `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Expired reports whether the code can no longer be used at now.
func (c *VerificationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
