package serverutils

import (
	"errors"

	"fieldops-notify-be/internal/service"
	"fieldops-notify-be/pkg/template"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts errors bubbling out of handlers into
// JSON responses. Sentinel errors from the service layer map onto their
// HTTP statuses; anything unrecognized is a 500 with a generic body so
// internals never leak to clients.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		message := "Internal server error"

		var fiberErr *fiber.Error
		var validationErrs validator.ValidationErrors

		switch {
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		case errors.As(err, &validationErrs):
			status = fiber.StatusBadRequest
			message = validationErrs.Error()
		case errors.Is(err, template.ErrTemplateNotFound),
			errors.Is(err, service.ErrInvalidChannel):
			status = fiber.StatusBadRequest
			message = err.Error()
		case errors.Is(err, service.ErrUnauthorized):
			status = fiber.StatusForbidden
			message = err.Error()
		case errors.Is(err, service.ErrRecipientNotFound),
			errors.Is(err, service.ErrNotificationNotFound):
			status = fiber.StatusNotFound
			message = err.Error()
		}

		return ctx.Status(status).JSON(fiber.Map{"error": message})
	}
}
