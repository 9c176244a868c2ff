package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docportal/internal/apperr"
)

// statusOf returns the status the error handler will answer err with.
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if ae, ok := apperr.As(err); ok {
		return ae.StatusCode()
	}
	return fiber.StatusInternalServerError
}
