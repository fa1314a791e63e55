package middleware

import (
	"errors"
	"strings"

	"akun/internal/models"
	"akun/internal/response"
	"akun/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const userKey = "user"

// AuthRequired is a Fiber middleware that accepts only requests carrying a
// valid bearer token of an existing, enabled user. The user is stored in
// the context for CurrentUser.
func AuthRequired(authService *services.AuthService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, "Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer")) {
			return response.Unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		user, err := authService.CurrentUser(c.UserContext(), parts[1])
		switch {
		case err == nil:
		case errors.Is(err, services.ErrAccountDisabled):
			return response.Status(c, fiber.StatusForbidden, services.ErrAccountDisabled.Error())
		case errors.Is(err, services.ErrTokenExpired):
			return response.Unauthorized(c, services.ErrTokenExpired.Error())
		case errors.Is(err, services.ErrTokenInvalid), errors.Is(err, services.ErrUserNotFound):
			log.Debug("bearer token rejected", zap.Error(err))
			return response.Unauthorized(c, services.ErrTokenInvalid.Error())
		default:
			log.Error("failed to resolve bearer token", zap.Error(err))
			return response.Status(c, fiber.StatusInternalServerError, "")
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(userKey).(*models.User)
	return user, ok && user != nil
}
