package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bargn/bargn/internal/auth"
	"github.com/bargn/bargn/pkg/models"
)

const principalKey = "principal"

// requireAuth verifies the bearer token and stores the caller's principal.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	if s.verifier == nil {
		return SendErrorWithType(c, fiber.StatusUnauthorized, "Authentication is not configured", models.AuthenticationErrorType)
	}
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return SendErrorWithType(c, fiber.StatusUnauthorized, "Missing bearer token", models.AuthenticationErrorType)
	}
	principal, err := s.verifier.Verify(c.Context(), token)
	if err != nil {
		s.log.Debug("rejected bearer token", "path", c.Path(), "error", err)
		return SendErrorWithType(c, fiber.StatusUnauthorized, "Invalid or expired token", models.AuthenticationErrorType)
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// requireRole rejects authenticated callers lacking role.
func (s *Server) requireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := c.Locals(principalKey).(*auth.Principal)
		if principal == nil {
			return SendErrorWithType(c, fiber.StatusUnauthorized, "Authentication required", models.AuthenticationErrorType)
		}
		if !principal.HasRole(role) {
			s.log.Warn("forbidden request", "subject", principal.Subject, "path", c.Path(), "required_role", role)
			return SendErrorWithType(c, fiber.StatusForbidden, "Insufficient permissions", models.AuthorizationErrorType)
		}
		return c.Next()
	}
}
