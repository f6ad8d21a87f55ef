package httpapi

import (
	"errors"

	"github.com/fixrx/auth-service/internal/auth"
	"github.com/fixrx/auth-service/internal/rate"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ok writes the success envelope, with data omitted when nil.
func ok(c *fiber.Ctx, status int, data interface{}) error {
	body := fiber.Map{"success": true}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

func okMessage(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// failFrom maps a flow error onto the HTTP taxonomy. Known failures keep
// their message; anything unexpected is logged and reduced to a generic 500
// so internals never leak.
func failFrom(c *fiber.Ctx, log *zap.Logger, err error) error {
	var flowErr *auth.Error
	if errors.As(err, &flowErr) {
		return fail(c, statusForKind(flowErr.Kind), flowErr.Message)
	}

	var limitErr *rate.LimitExceededError
	if errors.As(err, &limitErr) {
		return fail(c, fiber.StatusTooManyRequests, limitErr.Error())
	}

	log.Error("unhandled flow error",
		zap.String("path", c.Path()),
		zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

func statusForKind(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return fiber.StatusBadRequest
	case auth.KindAuthentication:
		return fiber.StatusUnauthorized
	case auth.KindAuthorization:
		return fiber.StatusForbidden
	case auth.KindNotFound:
		return fiber.StatusNotFound
	case auth.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
