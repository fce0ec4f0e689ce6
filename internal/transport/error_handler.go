package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sendbridge/core/internal/domain"
	"go.uber.org/zap"
)

// ErrorHandler maps domain errors to HTTP statuses. System faults are logged
// with their cause and returned as a generic message; customer faults pass
// through verbatim.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, message := statusFor(err)

		if code >= fiber.StatusInternalServerError {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"status": "failed",
			"error": fiber.Map{
				"code":    codeFor(code),
				"message": message,
			},
		})
	}
}

func statusFor(err error) (int, string) {
	var custErr *domain.CustomerError
	if errors.As(err, &custErr) {
		return custErr.Status, custErr.Message
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests, err.Error()
	case errors.Is(err, domain.ErrInsufficientBalance):
		return fiber.StatusPaymentRequired, err.Error()
	case errors.Is(err, domain.ErrAccountInactive):
		return fiber.StatusForbidden, err.Error()
	}

	return fiber.StatusInternalServerError, "an internal error occurred, please try again later"
}

func codeFor(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "invalid_request"
	case fiber.StatusPaymentRequired:
		return "insufficient_balance"
	case fiber.StatusForbidden:
		return "account_inactive"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusConflict:
		return "conflict"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
