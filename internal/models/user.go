package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Username and email are unique among
// rows that have not been soft-deleted.
type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(255)"`
	Username    string         `json:"username" gorm:"type:varchar(20);not null;index:idx_users_username,unique,where:deleted_at IS NULL"`
	Password    string         `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Email       string         `json:"email" gorm:"type:varchar(255);not null;index:idx_users_email,unique,where:deleted_at IS NULL"`
	Sex         int            `json:"sex" gorm:"type:smallint"` // 1 male, 0 female
	Enabled     bool           `json:"enabled" gorm:"not null"`
	LoginCount  int            `json:"login_count" gorm:"not null"`
	ClientHost  string         `json:"client_host" gorm:"type:varchar(45)"`
	LastLoginAt *time.Time     `json:"last_login_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
