package services_test

import (
	"context"
	"testing"
	"time"

	"akun/internal/models"
	"akun/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_SignUp(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	code := s.requestCode(t, "dave@x.com")
	s.clock.Set(20 * time.Second)

	user, err := s.accounts.SignUp(ctx, services.SignUpInput{
		Username:   "dave",
		Password:   "secret",
		Email:      "Dave@X.com",
		Code:       code,
		ClientHost: "10.0.0.4",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "dave@x.com", user.Email)
	assert.True(t, user.Enabled)
	assert.Equal(t, services.SexMale, user.Sex)
	assert.Equal(t, "10.0.0.4", user.ClientHost)
	assert.NotEqual(t, "secret", user.Password)

	_, err = s.auth.Authenticate(ctx, "dave", "secret")
	assert.NoError(t, err)

	_, err = s.verification.ValidateCode(ctx, "dave@x.com", code)
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
}

func TestAccountService_SignUpDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	_, err := s.accounts.CreateUser(ctx, services.CreateUserInput{
		Username: "erin", Password: "secret", Email: "erin@x.com", Enabled: true,
	})
	require.NoError(t, err)

	code := s.requestCode(t, "erin@x.com")
	_, err = s.accounts.SignUp(ctx, services.SignUpInput{Username: "other", Password: "p", Email: "erin@x.com", Code: code})
	assert.ErrorIs(t, err, services.ErrDuplicateEmail)

	code2 := s.requestCode(t, "new@x.com")
	_, err = s.accounts.SignUp(ctx, services.SignUpInput{Username: "erin", Password: "p", Email: "new@x.com", Code: code2})
	assert.ErrorIs(t, err, services.ErrDuplicateUsername)

	// Rejected sign-ups leave the codes usable.
	_, err = s.verification.ValidateCode(ctx, "erin@x.com", code)
	assert.NoError(t, err)
	_, err = s.verification.ValidateCode(ctx, "new@x.com", code2)
	assert.NoError(t, err)
}

func TestAccountService_SignUpAfterDeleteReusesIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	old, err := s.accounts.CreateUser(ctx, services.CreateUserInput{
		Username: "frank", Password: "secret", Email: "frank@x.com", Enabled: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.accounts.DeleteUser(ctx, old.ID))

	code := s.requestCode(t, "frank@x.com")
	user, err := s.accounts.SignUp(ctx, services.SignUpInput{Username: "frank", Password: "new", Email: "frank@x.com", Code: code})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, user.ID)
}

func TestAccountService_SignUpBadCodeCreatesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	_, err := s.accounts.SignUp(ctx, services.SignUpInput{Username: "gina", Password: "p", Email: "gina@x.com", Code: "ABCDEF"})
	assert.ErrorIs(t, err, services.ErrCodeNotFound)

	code := s.requestCode(t, "gina@x.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = s.accounts.SignUp(ctx, services.SignUpInput{Username: "gina", Password: "p", Email: "gina@x.com", Code: wrong})
	assert.ErrorIs(t, err, services.ErrCodeMismatch)

	s.clock.Set(6 * time.Minute)
	_, err = s.accounts.SignUp(ctx, services.SignUpInput{Username: "gina", Password: "p", Email: "gina@x.com", Code: code})
	assert.ErrorIs(t, err, services.ErrCodeExpired)

	users, total, err := s.accounts.ListUsers(ctx, "", 0, 20)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, total)
}

func TestAccountService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	_, err := s.accounts.CreateUser(ctx, services.CreateUserInput{
		Username: "hank", Password: "old", Email: "hank@x.com", Enabled: true,
	})
	require.NoError(t, err)

	code := s.requestCode(t, "hank@x.com")
	err = s.accounts.ResetPassword(ctx, services.ResetPasswordInput{
		Email: "hank@x.com", Password: "new", Code: code, ClientHost: "10.0.0.8",
	})
	require.NoError(t, err)

	_, err = s.auth.Authenticate(ctx, "hank", "old")
	assert.ErrorIs(t, err, services.ErrBadCredentials)
	user, err := s.auth.Authenticate(ctx, "hank", "new")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.8", user.ClientHost)

	err = s.accounts.ResetPassword(ctx, services.ResetPasswordInput{Email: "hank@x.com", Password: "again", Code: code})
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
}

func TestAccountService_ResetPasswordUnknownEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	code := s.requestCode(t, "ivy@x.com")
	err := s.accounts.ResetPassword(ctx, services.ResetPasswordInput{Email: "ivy@x.com", Password: "p", Code: code})
	require.NoError(t, err)

	// The code is still consumed and no account appears.
	_, err = s.verification.ValidateCode(ctx, "ivy@x.com", code)
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	_, total, err := s.accounts.ListUsers(ctx, "", 0, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAccountService_LoginBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	_, err := s.accounts.CreateUser(ctx, services.CreateUserInput{
		Username: "carol", Password: "secret", Email: "carol@x.com", Enabled: false,
	})
	require.NoError(t, err)
	_, err = s.accounts.CreateUser(ctx, services.CreateUserInput{
		Username: "judy", Password: "secret", Email: "judy@x.com", Enabled: true,
	})
	require.NoError(t, err)

	_, err = s.auth.Login(ctx, "carol", "secret", "10.0.0.3")
	assert.ErrorIs(t, err, services.ErrAccountDisabled)

	carol, err := s.users.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, carol.LoginCount)
	assert.Nil(t, carol.LastLoginAt)

	s.clock.Set(time.Minute)
	_, err = s.auth.Login(ctx, "judy", "secret", "10.0.0.9")
	require.NoError(t, err)
	_, err = s.auth.Login(ctx, "judy@x.com", "secret", "10.0.0.10")
	require.NoError(t, err)

	judy, err := s.users.GetByUsername(ctx, "judy")
	require.NoError(t, err)
	assert.Equal(t, 2, judy.LoginCount)
	assert.Equal(t, "10.0.0.10", judy.ClientHost)
	require.NotNil(t, judy.LastLoginAt)
	assert.Equal(t, t0.Add(time.Minute).Unix(), judy.LastLoginAt.Unix())
}

func TestAccountService_AdminCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)

	created := make([]*models.User, 0, 3)
	for _, in := range []services.CreateUserInput{
		{Username: "kim", Name: "Kim Lee", Password: "p", Email: "kim@x.com", Sex: 0, Enabled: true},
		{Username: "lee", Name: "Lee Kim", Password: "p", Email: "lee@x.com", Sex: 1, Enabled: true},
		{Username: "max", Name: "Max", Password: "p", Email: "max@x.com", Sex: 1, Enabled: false},
	} {
		user, err := s.accounts.CreateUser(ctx, in)
		require.NoError(t, err)
		created = append(created, user)
	}

	users, total, err := s.accounts.ListUsers(ctx, "Kim", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)

	users, total, err = s.accounts.ListUsers(ctx, "", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 1)
	assert.Equal(t, "lee", users[0].Username)

	_, err = s.accounts.CreateUser(ctx, services.CreateUserInput{Username: "kim2", Password: "p", Email: "KIM@x.com"})
	assert.ErrorIs(t, err, services.ErrDuplicateEmail)

	kim := created[0]
	name := "Kimberly"
	enabled := false
	updated, err := s.accounts.UpdateUser(ctx, services.UpdateUserInput{ID: kim.ID, Name: &name, Enabled: &enabled, ClientHost: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Kimberly", updated.Name)
	assert.False(t, updated.Enabled)
	assert.Equal(t, kim.Password, updated.Password)

	updated, err = s.accounts.UpdateUser(ctx, services.UpdateUserInput{ID: kim.ID, Password: "changed"})
	require.NoError(t, err)
	assert.NotEqual(t, kim.Password, updated.Password)
	assert.True(t, s.auth.VerifyPassword("changed", updated.Password))

	taken := "lee@x.com"
	_, err = s.accounts.UpdateUser(ctx, services.UpdateUserInput{ID: kim.ID, Email: &taken})
	assert.ErrorIs(t, err, services.ErrDuplicateEmail)

	same := "kim@x.com"
	_, err = s.accounts.UpdateUser(ctx, services.UpdateUserInput{ID: kim.ID, Email: &same})
	assert.NoError(t, err)

	_, err = s.accounts.UpdateUser(ctx, services.UpdateUserInput{ID: 999, Name: &name})
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	require.NoError(t, s.accounts.DeleteUser(ctx, kim.ID))
	_, err = s.accounts.GetUser(ctx, kim.ID)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.ErrorIs(t, s.accounts.DeleteUser(ctx, kim.ID), services.ErrUserNotFound)

	var rows int64
	require.NoError(t, s.db.Unscoped().Model(&models.User{}).Where("id = ?", kim.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}
