package handlers

import (
	"errors"
	"strings"

	"akun/internal/middleware"
	"akun/internal/response"
	"akun/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles token issuance and the login-signup flows.
type AuthHandler struct {
	authService         *services.AuthService
	verificationService *services.VerificationService
	accountService      *services.AccountService
	validate            *validator.Validate
	log                 *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *services.AuthService,
	verificationService *services.VerificationService,
	accountService *services.AccountService,
	log *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		verificationService: verificationService,
		accountService:      accountService,
		validate:            newValidator(),
		log:                 log,
	}
}

// RegisterRoutes registers /token and the /user/login-signup routes.
// requireAuth guards the current-user endpoint.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	router.Post("/token", h.HandleToken)

	loginSignup := router.Group("/user/login-signup")
	loginSignup.Get("/user", requireAuth, h.HandleCurrentUser)
	loginSignup.Post("/send-email", h.HandleSendEmail)
	loginSignup.Post("/sign-up", h.HandleSignUp)
	loginSignup.Post("/update-password", h.HandleUpdatePassword)
}

// TokenRequest is the password grant, sent as a form or as JSON. Username
// may be an email address.
type TokenRequest struct {
	GrantType string `json:"grant_type" form:"grant_type"`
	Username  string `json:"username" form:"username" validate:"required"`
	Password  string `json:"password" form:"password" validate:"required"`
}

// TokenResponse is the OAuth2 access token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleToken authenticates the user and issues a bearer token.
func (h *AuthHandler) HandleToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	token, err := h.authService.Login(c.UserContext(), req.Username, req.Password, c.IP())
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) || errors.Is(err, services.ErrBadCredentials) {
			return response.Unauthorized(c, services.ErrBadCredentials.Error())
		}
		return respondError(c, h.log, err)
	}

	return c.JSON(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// HandleCurrentUser returns the user the bearer token belongs to.
func (h *AuthHandler) HandleCurrentUser(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return response.Status(c, fiber.StatusUnauthorized, services.ErrTokenInvalid.Error())
	}
	return response.OK(c, user, 0)
}

// SendEmailRequest asks for a verification code.
type SendEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// HandleSendEmail issues a verification code and returns the delivery task id.
func (h *AuthHandler) HandleSendEmail(c *fiber.Ctx) error {
	var req SendEmailRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	taskID, err := h.verificationService.RequestCode(c.UserContext(), strings.ToLower(req.Email))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, fiber.Map{"task_id": taskID}, 0)
}

// SignUpRequest registers a new account.
type SignUpRequest struct {
	Username string `json:"username" validate:"required,max=20,excludes=@"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Captcha  string `json:"captcha" validate:"required,len=6"`
}

// HandleSignUp registers a user once the emailed code checks out.
func (h *AuthHandler) HandleSignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	_, err := h.accountService.SignUp(c.UserContext(), services.SignUpInput{
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		Code:       req.Captcha,
		ClientHost: c.IP(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, "Successfully sign up user", 0)
}

// UpdatePasswordRequest resets a forgotten password.
type UpdatePasswordRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Captcha  string `json:"captcha" validate:"required,len=6"`
}

// HandleUpdatePassword resets the password of the account owning the email.
func (h *AuthHandler) HandleUpdatePassword(c *fiber.Ctx) error {
	var req UpdatePasswordRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	err := h.accountService.ResetPassword(c.UserContext(), services.ResetPasswordInput{
		Email:      req.Email,
		Password:   req.Password,
		Code:       req.Captcha,
		ClientHost: c.IP(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, "Successfully updated user", 0)
}
