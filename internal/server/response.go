package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bargn/bargn/pkg/models"
)

// SendSuccess writes the standard success envelope.
func SendSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(models.APIResponse{
		Status: "success",
		Data:   data,
	})
}

// SendError writes an error response of the general type.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithType(c, status, message, models.GeneralErrorType)
}

// SendErrorWithType writes an error response carrying errType.
func SendErrorWithType(c *fiber.Ctx, status int, message string, errType models.ErrorType) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Status:    "error",
		Error:     message,
		ErrorType: errType,
	})
}

// sendDomainError maps err onto the HTTP status of its error kind. Anything
// unclassified is logged and answered with fallback and a 500.
func (s *Server) sendDomainError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return SendErrorWithType(c, fiber.StatusBadRequest, err.Error(), models.ValidationErrorType)
	case errors.Is(err, models.ErrUnauthorized):
		return SendErrorWithType(c, fiber.StatusUnauthorized, err.Error(), models.AuthenticationErrorType)
	case errors.Is(err, models.ErrForbidden):
		return SendErrorWithType(c, fiber.StatusForbidden, err.Error(), models.AuthorizationErrorType)
	case errors.Is(err, models.ErrNotFound):
		return SendErrorWithType(c, fiber.StatusNotFound, err.Error(), models.NotFoundErrorType)
	case errors.Is(err, models.ErrRateLimited):
		return SendErrorWithType(c, fiber.StatusTooManyRequests, err.Error(), models.RateLimitErrorType)
	case errors.Is(err, models.ErrQuotaExceeded):
		return SendErrorWithType(c, fiber.StatusPaymentRequired, err.Error(), models.QuotaErrorType)
	case errors.Is(err, models.ErrUpstreamFailure):
		s.log.Error(fallback, "path", c.Path(), "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, fallback, models.ExternalServiceErrorType)
	default:
		s.log.Error(fallback, "path", c.Path(), "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, fallback, models.GeneralErrorType)
	}
}
