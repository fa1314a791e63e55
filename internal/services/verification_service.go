package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"akun/internal/cache"
	"akun/internal/models"
	"akun/internal/repositories"

	"go.uber.org/zap"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeNotifier queues delivery of a code and returns a handle to the task.
type CodeNotifier interface {
	Enqueue(ctx context.Context, code, to string) (string, error)
}

// VerificationService issues, rate-limits, validates and invalidates one-time
// email codes. The durable repository decides validity; the cache only
// decides the resend cooldown.
type VerificationService struct {
	codes    repositories.VerificationCodeRepository
	cache    *cache.CodeCache
	notifier CodeNotifier
	codeTTL  time.Duration
	cooldown time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewVerificationService creates a new VerificationService. Codes expire
// after codeTTL and may be re-requested once cooldown has passed.
func NewVerificationService(
	codes repositories.VerificationCodeRepository,
	codeCache *cache.CodeCache,
	notifier CodeNotifier,
	codeTTL, cooldown time.Duration,
	log *zap.Logger,
) *VerificationService {
	return &VerificationService{
		codes:    codes,
		cache:    codeCache,
		notifier: notifier,
		codeTTL:  codeTTL,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	s.now = now
	return s
}

// RequestCode issues a fresh code for email, stores it and queues its
// delivery. The returned string is the delivery task id, never the code.
//
// A cache miss means no cooldown, so an evicted entry lets the caller resend
// early.
func (s *VerificationService) RequestCode(ctx context.Context, email string) (string, error) {
	now := s.now()

	entry, err := s.cache.Lookup(ctx, email)
	switch {
	case err == nil:
		if elapsed := now.Sub(entry.CreatedAt); elapsed < s.cooldown {
			return "", &RateLimitError{
				Interval:  int(s.cooldown.Seconds()),
				Remaining: int(math.Ceil((s.cooldown - elapsed).Seconds())),
			}
		}
		if err := s.cache.Drop(ctx, email); err != nil {
			return "", fmt.Errorf("failed to clear cached code for %s: %w", email, err)
		}
	case cache.IsMiss(err):
	default:
		return "", fmt.Errorf("failed to check resend cooldown for %s: %w", email, err)
	}

	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	record := &models.VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.codeTTL),
		CreatedAt: now,
	}
	if err := s.codes.ReplaceActive(ctx, record); err != nil {
		return "", storageError("save verification code", err)
	}

	err = s.cache.Put(ctx, cache.Entry{
		Email:     email,
		Code:      code,
		ExpiresAt: record.ExpiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to cache code for %s: %w", email, err)
	}

	taskID, err := s.notifier.Enqueue(ctx, code, email)
	if err != nil {
		// Nothing was sent, so the cooldown must not start.
		if dropErr := s.cache.Drop(ctx, email); dropErr != nil {
			s.log.Error("failed to clear cached code", zap.String("email", email), zap.Error(dropErr))
		}
		return "", fmt.Errorf("failed to queue verification email: %w", err)
	}

	s.log.Info("verification code issued", zap.String("email", email), zap.String("task_id", taskID))
	return taskID, nil
}

// ValidateCode checks code against the active record for email. An expired
// record is invalidated before ErrCodeExpired is returned. On success the
// caller must call InvalidateCode once the code has served its purpose.
func (s *VerificationService) ValidateCode(ctx context.Context, email, code string) (*models.VerificationCode, error) {
	record, err := s.codes.GetActive(ctx, email)
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, storageError("load verification code", err)
	}

	if record.Expired(s.now()) {
		if err := s.InvalidateCode(ctx, email); err != nil {
			return nil, err
		}
		return nil, ErrCodeExpired
	}
	if record.Code != code {
		return nil, ErrCodeMismatch
	}
	return record, nil
}

// InvalidateCode soft-deletes the active code for email, if any.
func (s *VerificationService) InvalidateCode(ctx context.Context, email string) error {
	if _, err := s.codes.InvalidateActive(ctx, email); err != nil {
		return storageError("invalidate verification code", err)
	}
	return nil
}

// GenerateCode returns six characters drawn uniformly from A-Z and 0-9.
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
