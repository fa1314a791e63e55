package services

import (
	"context"
	"errors"
	"strings"

	"akun/internal/models"
	"akun/internal/repositories"

	"go.uber.org/zap"
)

// SexMale is the default sex flag for self-registered users.
const SexMale = 1

// SignUpInput is a self-registration request.
type SignUpInput struct {
	Username   string
	Password   string
	Email      string
	Code       string
	ClientHost string
}

// ResetPasswordInput is a password reset request.
type ResetPasswordInput struct {
	Email      string
	Password   string
	Code       string
	ClientHost string
}

// CreateUserInput is an administrative user creation.
type CreateUserInput struct {
	Username   string
	Password   string
	Email      string
	Name       string
	Sex        int
	Enabled    bool
	ClientHost string
}

// UpdateUserInput is an administrative profile update. Nil fields are left
// unchanged and an empty password keeps the current one.
type UpdateUserInput struct {
	ID         uint
	Name       *string
	Email      *string
	Sex        *int
	Enabled    *bool
	Password   string
	ClientHost string
}

// AccountService runs the account flows built on the verification and
// credential engines.
type AccountService struct {
	userRepo     repositories.UserRepository
	verification *VerificationService
	auth         *AuthService
	log          *zap.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(userRepo repositories.UserRepository, verification *VerificationService, auth *AuthService, log *zap.Logger) *AccountService {
	return &AccountService{
		userRepo:     userRepo,
		verification: verification,
		auth:         auth,
		log:          log,
	}
}

// SignUp registers a user after checking uniqueness and consuming the
// emailed code. If the insert fails after the code was consumed, the caller
// has to request a new code.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := strings.ToLower(in.Email)
	if err := s.ensureUnique(ctx, email, in.Username); err != nil {
		return nil, err
	}

	if _, err := s.verification.ValidateCode(ctx, email, in.Code); err != nil {
		return nil, err
	}
	if err := s.verification.InvalidateCode(ctx, email); err != nil {
		return nil, err
	}

	user, err := s.create(ctx, &models.User{
		Username:   in.Username,
		Email:      email,
		Sex:        SexMale,
		Enabled:    true,
		ClientHost: in.ClientHost,
	}, in.Password)
	if err != nil {
		return nil, err
	}
	s.log.Info("user signed up", zap.Uint("user_id", user.ID), zap.String("client_host", in.ClientHost))
	return user, nil
}

// ResetPassword replaces the password of the user owning in.Email once the
// emailed code checks out.
func (s *AccountService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	email := strings.ToLower(in.Email)

	if _, err := s.verification.ValidateCode(ctx, email, in.Code); err != nil {
		return err
	}
	if err := s.verification.InvalidateCode(ctx, email); err != nil {
		return err
	}

	hashed, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return err
	}
	n, err := s.userRepo.UpdateByEmail(ctx, email, map[string]interface{}{
		"password":    hashed,
		"client_host": in.ClientHost,
	})
	if err != nil {
		return storageError("update password", err)
	}
	if n == 0 {
		// Same answer as a real reset so the endpoint does not reveal which
		// addresses have accounts.
		s.log.Info("password reset for unknown email ignored", zap.String("email", email))
		return nil
	}
	s.log.Info("password reset", zap.String("email", email), zap.String("client_host", in.ClientHost))
	return nil
}

// ListUsers returns one page of users whose name contains search, and the
// number of users matching search.
func (s *AccountService) ListUsers(ctx context.Context, search string, skip, limit int) ([]models.User, int64, error) {
	total, err := s.userRepo.Count(ctx, search)
	if err != nil {
		return nil, 0, storageError("count users", err)
	}
	users, err := s.userRepo.Search(ctx, search, skip, limit)
	if err != nil {
		return nil, 0, storageError("search users", err)
	}
	return users, total, nil
}

// CreateUser adds a user without a verification code.
func (s *AccountService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := strings.ToLower(in.Email)
	if err := s.ensureUnique(ctx, email, in.Username); err != nil {
		return nil, err
	}
	return s.create(ctx, &models.User{
		Name:       in.Name,
		Username:   in.Username,
		Email:      email,
		Sex:        in.Sex,
		Enabled:    in.Enabled,
		ClientHost: in.ClientHost,
	}, in.Password)
}

// GetUser returns the user with the given id.
func (s *AccountService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageError("load user", err)
	}
	return user, nil
}

// UpdateUser applies in to an existing user and returns the updated record.
func (s *AccountService) UpdateUser(ctx context.Context, in UpdateUserInput) (*models.User, error) {
	fields := map[string]interface{}{
		"client_host": in.ClientHost,
	}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Email != nil {
		email := strings.ToLower(*in.Email)
		owner, err := s.userRepo.GetByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != in.ID:
			return nil, ErrDuplicateEmail
		case err != nil && !errors.Is(err, repositories.ErrRecordNotFound):
			return nil, storageError("check email", err)
		}
		fields["email"] = email
	}
	if in.Sex != nil {
		fields["sex"] = *in.Sex
	}
	if in.Enabled != nil {
		fields["enabled"] = *in.Enabled
	}
	if in.Password != "" {
		hashed, err := s.auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		fields["password"] = hashed
	}

	n, err := s.userRepo.UpdateByID(ctx, in.ID, fields)
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, storageError("update user", err)
	}
	if n == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUser(ctx, in.ID)
}

// DeleteUser soft-deletes the user with the given id.
func (s *AccountService) DeleteUser(ctx context.Context, id uint) error {
	n, err := s.userRepo.SoftDelete(ctx, id)
	if err != nil {
		return storageError("delete user", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	s.log.Info("user deleted", zap.Uint("user_id", id))
	return nil
}

func (s *AccountService) ensureUnique(ctx context.Context, email, username string) error {
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, repositories.ErrRecordNotFound) {
		return storageError("check email", err)
	}
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, repositories.ErrRecordNotFound) {
		return storageError("check username", err)
	}
	return nil
}

func (s *AccountService) create(ctx context.Context, user *models.User, password string) (*models.User, error) {
	hashed, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.Password = hashed

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			if _, lookupErr := s.userRepo.GetByEmail(ctx, user.Email); lookupErr == nil {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrDuplicateUsername
		}
		return nil, storageError("create user", err)
	}
	return user, nil
}
