package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"akun/internal/models"

	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository. The soft
// delete predicate comes from models.User.DeletedAt, so every query below
// skips deleted rows without repeating the filter.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to create user %s: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return r.first(ctx, fmt.Sprintf("ID %d", id), "id = ?", id)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email "+email, "email = ?", email)
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username "+username, "username = ?", username)
}

func (r *GORMUserRepository) first(ctx context.Context, what string, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with %s not found: %w", what, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", what, err)
	}
	return &user, nil
}

// Count returns the number of users whose display name contains name. An
// empty name counts every user.
func (r *GORMUserRepository) Count(ctx context.Context, name string) (int64, error) {
	var total int64
	if err := r.byName(ctx, name).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

// Search returns one page of users whose display name contains name.
func (r *GORMUserRepository) Search(ctx context.Context, name string, offset, limit int) ([]models.User, error) {
	var users []models.User
	if err := r.byName(ctx, name).Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (r *GORMUserRepository) byName(ctx context.Context, name string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	return q
}

// UpdateByID applies fields to the user with the given ID.
func (r *GORMUserRepository) UpdateByID(ctx context.Context, id uint, fields map[string]interface{}) (int64, error) {
	return r.update(ctx, "id = ?", id, fields)
}

// UpdateByEmail applies fields to the user with the given email.
func (r *GORMUserRepository) UpdateByEmail(ctx context.Context, email string, fields map[string]interface{}) (int64, error) {
	return r.update(ctx, "email = ?", email, fields)
}

// UpdateByUsername applies fields to the user with the given username.
func (r *GORMUserRepository) UpdateByUsername(ctx context.Context, username string, fields map[string]interface{}) (int64, error) {
	return r.update(ctx, "username = ?", username, fields)
}

// IncrementLoginByEmail bumps the login counter and records the client
// address and login time.
func (r *GORMUserRepository) IncrementLoginByEmail(ctx context.Context, email, clientHost string, at time.Time) (int64, error) {
	return r.update(ctx, "email = ?", email, loginFields(clientHost, at))
}

// IncrementLoginByUsername is IncrementLoginByEmail keyed by username.
func (r *GORMUserRepository) IncrementLoginByUsername(ctx context.Context, username, clientHost string, at time.Time) (int64, error) {
	return r.update(ctx, "username = ?", username, loginFields(clientHost, at))
}

func loginFields(clientHost string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"login_count":   gorm.Expr("login_count + ?", 1),
		"client_host":   clientHost,
		"last_login_at": at,
	}
}

func (r *GORMUserRepository) update(ctx context.Context, query string, arg interface{}, fields map[string]interface{}) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where(query, arg).Updates(fields)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, fmt.Errorf("failed to update user: %w", ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to update user: %w", err)
	}
	return affected, nil
}

// SoftDelete marks the user with the given ID as deleted. The row is kept.
func (r *GORMUserRepository) SoftDelete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete user %d: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}
