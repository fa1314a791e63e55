package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"akun/internal/notify"
	"akun/internal/response"
	"akun/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var rateErr *services.RateLimitError
	switch {
	case errors.As(err, &rateErr),
		errors.Is(err, services.ErrRateLimited),
		errors.Is(err, services.ErrCodeNotFound),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrCodeMismatch),
		errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrDuplicateUsername):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrBadCredentials),
		errors.Is(err, services.ErrTokenInvalid),
		errors.Is(err, services.ErrTokenExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrAccountDisabled):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, notify.ErrTaskNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as an envelope. Validation failures carry the
// per-field messages; server errors are logged and their text withheld.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var invalid *validationError
	if errors.As(err, &invalid) {
		return response.Status(c, fiber.StatusUnprocessableEntity, invalid.fields)
	}

	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return response.Status(c, status, "")
	}
	return response.Status(c, status, publicMessage(err))
}

// publicMessage is the text of the outermost service sentinel in err.
func publicMessage(err error) string {
	var rateErr *services.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Error()
	}
	for _, sentinel := range []error{
		services.ErrCodeNotFound, services.ErrCodeExpired, services.ErrCodeMismatch,
		services.ErrDuplicateEmail, services.ErrDuplicateUsername, services.ErrUserNotFound,
		services.ErrBadCredentials, services.ErrAccountDisabled, services.ErrTokenInvalid,
		services.ErrTokenExpired, notify.ErrTaskNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// ErrorHandler renders errors that escape the route handlers, such as
// unknown routes, in the envelope.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return response.Status(c, fiberErr.Code, fiberErr.Message)
		}
		return respondError(c, log, err)
	}
}

type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.fields)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the request body into req and validates it.
func bind(c *fiber.Ctx, validate *validator.Validate, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return &validationError{fields: map[string]string{"body": "Invalid request body"}}
	}
	return check(validate, req)
}

func check(validate *validator.Validate, req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return &validationError{fields: errorMessages}
}
