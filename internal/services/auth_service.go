package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"akun/internal/models"
	"akun/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is used when IssueToken is called without a positive ttl.
const DefaultTokenTTL = 60 * time.Minute

// IdentifierKind tags a login identifier as an email or a username.
type IdentifierKind int

const (
	IdentifierUsername IdentifierKind = iota
	IdentifierEmail
)

// Identifier is a resolved email-or-username login identifier.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// Claims are the JWT claims carried by an access token. The subject is the
// user's email.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Email returns the token subject.
func (c *Claims) Email() string {
	return c.Subject
}

// AuthService handles password hashing, token issuance and login bookkeeping.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	cost      int
	validate  *validator.Validate
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService. A non-positive tokenTTL falls
// back to DefaultTokenTTL and an out-of-range cost to bcrypt.DefaultCost.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, cost int, log *zap.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		cost:      cost,
		validate:  validator.New(),
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// HashPassword returns the bcrypt hash of plain.
func (s *AuthService) HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hash.
func (s *AuthService) VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ResolveIdentifier decides whether raw is an email or a username. Emails
// are lower-cased.
func (s *AuthService) ResolveIdentifier(raw string) Identifier {
	if s.validate.Var(raw, "required,email") == nil {
		return Identifier{Kind: IdentifierEmail, Value: strings.ToLower(raw)}
	}
	return Identifier{Kind: IdentifierUsername, Value: raw}
}

func (s *AuthService) lookup(ctx context.Context, id Identifier) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if id.Kind == IdentifierEmail {
		user, err = s.userRepo.GetByEmail(ctx, id.Value)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, id.Value)
	}
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageError("load user", err)
	}
	return user, nil
}

// Authenticate resolves identifier and checks plain against the stored hash.
// The enabled flag is checked only after the password verifies. Nothing is
// written.
func (s *AuthService) Authenticate(ctx context.Context, identifier, plain string) (*models.User, error) {
	user, err := s.lookup(ctx, s.ResolveIdentifier(identifier))
	if err != nil {
		return nil, err
	}
	if !s.VerifyPassword(plain, user.Password) {
		return nil, ErrBadCredentials
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// IssueToken signs an HS256 token for email and name that expires after ttl,
// or after the configured lifetime when ttl is not positive.
func (s *AuthService) IssueToken(email, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.tokenTTL
	}
	now := s.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RecordLogin bumps the login counter and stores the client address and time
// for the user named by identifier.
func (s *AuthService) RecordLogin(ctx context.Context, identifier, clientHost string) error {
	id := s.ResolveIdentifier(identifier)

	var (
		n   int64
		err error
	)
	if id.Kind == IdentifierEmail {
		n, err = s.userRepo.IncrementLoginByEmail(ctx, id.Value, clientHost, s.now())
	} else {
		n, err = s.userRepo.IncrementLoginByUsername(ctx, id.Value, clientHost, s.now())
	}
	if err != nil {
		return storageError("record login", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Login authenticates, issues a token and records the login. A rejected
// attempt changes nothing.
func (s *AuthService) Login(ctx context.Context, identifier, password, clientHost string) (string, error) {
	user, err := s.Authenticate(ctx, identifier, password)
	if err != nil {
		s.log.Info("login rejected", zap.String("identifier", identifier), zap.Error(err))
		return "", err
	}

	token, err := s.IssueToken(user.Email, user.Username, 0)
	if err != nil {
		return "", err
	}
	if err := s.RecordLogin(ctx, identifier, clientHost); err != nil {
		return "", err
	}

	s.log.Info("user logged in", zap.Uint("user_id", user.ID), zap.String("client_host", clientHost))
	return token, nil
}

// CurrentUser returns the enabled user a token was issued to, or
// ErrUserNotFound when that user has since been deleted.
func (s *AuthService) CurrentUser(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.lookup(ctx, Identifier{Kind: IdentifierEmail, Value: claims.Email()})
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	return user, nil
}
