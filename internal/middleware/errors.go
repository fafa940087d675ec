package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/newslens/newslens/internal/logger"
)

// ErrorHandler renders uncaught errors as a structured JSON body. Only the
// status text is exposed; internal detail stays in the log.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	logger.Get().Error().
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", code).
		Msg("HTTP error")

	return c.Status(code).JSON(fiber.Map{
		"error": http.StatusText(code),
	})
}
