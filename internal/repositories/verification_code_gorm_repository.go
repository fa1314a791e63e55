package repositories

import (
	"context"
	"errors"
	"fmt"

	"akun/internal/models"

	"gorm.io/gorm"
)

// GORMVerificationCodeRepository is a GORM implementation of
// VerificationCodeRepository. Invalidation is a soft delete.
type GORMVerificationCodeRepository struct {
	db *gorm.DB
}

// NewGORMVerificationCodeRepository creates a new instance of GORMVerificationCodeRepository.
func NewGORMVerificationCodeRepository(db *gorm.DB) *GORMVerificationCodeRepository {
	return &GORMVerificationCodeRepository{
		db: db,
	}
}

// Create stores a new code.
func (r *GORMVerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}
	return nil
}

// GetActive retrieves the newest active code for email.
func (r *GORMVerificationCodeRepository) GetActive(ctx context.Context, email string) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := r.db.WithContext(ctx).Where("email = ?", email).Order("id DESC").First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active verification code for %s not found: %w", email, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get verification code for %s: %w", email, err)
	}
	return &code, nil
}

// InvalidateActive soft-deletes the active codes for email.
func (r *GORMVerificationCodeRepository) InvalidateActive(ctx context.Context, email string) (int64, error) {
	res := r.db.WithContext(ctx).Where("email = ?", email).Delete(&models.VerificationCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to invalidate verification code for %s: %w", email, res.Error)
	}
	return res.RowsAffected, nil
}

// ReplaceActive invalidates the previous codes for code.Email and stores code.
// Either both happen or neither does.
func (r *GORMVerificationCodeRepository) ReplaceActive(ctx context.Context, code *models.VerificationCode) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", code.Email).Delete(&models.VerificationCode{}).Error; err != nil {
			return err
		}
		return tx.Create(code).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace verification code for %s: %w", code.Email, err)
	}
	return nil
}
