package repositories

import (
	"context"

	"akun/internal/models"
)

// VerificationCodeRepository defines the interface for verification code
// data access, keyed by email.
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *models.VerificationCode) error
	// GetActive returns the newest non-deleted code for email.
	GetActive(ctx context.Context, email string) (*models.VerificationCode, error)
	// InvalidateActive soft-deletes every active code for email. It is a
	// no-op when there is none.
	InvalidateActive(ctx context.Context, email string) (int64, error)
	// ReplaceActive invalidates the active codes for code.Email and inserts
	// code in a single transaction.
	ReplaceActive(ctx context.Context, code *models.VerificationCode) error
}
