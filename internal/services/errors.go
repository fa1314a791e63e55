package services

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited       = errors.New("verification code requested too often")
	ErrCodeNotFound      = errors.New("verification code is invalid, please request a new one")
	ErrCodeExpired       = errors.New("verification code has expired, please request a new one")
	ErrCodeMismatch      = errors.New("verification code is incorrect")
	ErrDuplicateEmail    = errors.New("email address is already registered")
	ErrDuplicateUsername = errors.New("username is already taken")
	ErrUserNotFound      = errors.New("user not found")
	ErrBadCredentials    = errors.New("incorrect username or password")
	ErrAccountDisabled   = errors.New("user is disabled")
	ErrTokenInvalid      = errors.New("could not validate credentials")
	ErrTokenExpired      = errors.New("token has expired")
	// ErrStorage marks a failed read or commit in the credential store.
	ErrStorage = errors.New("storage failure")
)

// RateLimitError is returned by RequestCode while the resend cooldown for an
// email is still running.
type RateLimitError struct {
	Interval  int // seconds
	Remaining int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("resend interval is %d seconds, %d seconds remaining", e.Interval, e.Remaining)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
