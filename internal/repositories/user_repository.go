package repositories

import (
	"context"
	"errors"
	"time"

	"akun/internal/models"
)

var (
	// ErrRecordNotFound is returned by lookups that match no active row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository defines the interface for user data access. Soft-deleted
// users are invisible to every method.
//
// Update methods return the number of rows changed; zero with a nil error
// means nothing matched.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Count(ctx context.Context, name string) (int64, error)
	Search(ctx context.Context, name string, offset, limit int) ([]models.User, error)
	UpdateByID(ctx context.Context, id uint, fields map[string]interface{}) (int64, error)
	UpdateByEmail(ctx context.Context, email string, fields map[string]interface{}) (int64, error)
	UpdateByUsername(ctx context.Context, username string, fields map[string]interface{}) (int64, error)
	IncrementLoginByEmail(ctx context.Context, email, clientHost string, at time.Time) (int64, error)
	IncrementLoginByUsername(ctx context.Context, username, clientHost string, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, id uint) (int64, error)
}
