package response

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// Response is the envelope returned by every endpoint except /token.
// Code is 0 on success and the HTTP status otherwise.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail"`
	Total   int64       `json:"total"`
}

// OK writes a 200 envelope.
func OK(c *fiber.Ctx, detail interface{}, total int64) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Code:    0,
		Message: "Success",
		Detail:  detail,
		Total:   total,
	})
}

// Status writes an error envelope with the given HTTP status.
func Status(c *fiber.Ctx, status int, detail interface{}) error {
	return c.Status(status).JSON(Response{
		Code:    status,
		Message: Message(status),
		Detail:  detail,
	})
}

// Unauthorized writes a 401 envelope with the bearer challenge header.
func Unauthorized(c *fiber.Ctx, detail string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return Status(c, fiber.StatusUnauthorized, detail)
}

// Message is the envelope message for status.
func Message(status int) string {
	switch status {
	case fiber.StatusForbidden:
		return "Forbidden Access"
	case fiber.StatusUnprocessableEntity:
		return "Validation failed"
	default:
		return utils.StatusMessage(status)
	}
}
