package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bargn/bargn/internal/core"
	"github.com/bargn/bargn/pkg/models"
)

func (s *Server) handleListAlertConfigs(c *fiber.Ctx) error {
	configs, err := core.ListAlertConfigs(c.Context(), s.store, s.log, c.Query("funnel_id"))
	if err != nil {
		return s.sendDomainError(c, err, "Failed to list alert configurations")
	}
	return SendSuccess(c, fiber.StatusOK, configs)
}

func (s *Server) handleCreateAlertConfig(c *fiber.Ctx) error {
	var req models.CreateAlertConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	cfg, err := core.CreateAlertConfig(c.Context(), s.store, s.log, &req)
	if err != nil {
		return s.sendDomainError(c, err, "Failed to create alert configuration")
	}
	return SendSuccess(c, fiber.StatusCreated, cfg)
}

func (s *Server) handleGetAlertConfig(c *fiber.Ctx) error {
	cfg, err := core.GetAlertConfig(c.Context(), s.store, s.log, c.Params("configID"))
	if err != nil {
		return s.sendDomainError(c, err, "Failed to retrieve alert configuration")
	}
	return SendSuccess(c, fiber.StatusOK, cfg)
}

func (s *Server) handleUpdateAlertConfig(c *fiber.Ctx) error {
	var req models.UpdateAlertConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	updated, err := core.UpdateAlertConfig(c.Context(), s.store, s.log, c.Params("configID"), &req)
	if err != nil {
		return s.sendDomainError(c, err, "Failed to update alert configuration")
	}
	return SendSuccess(c, fiber.StatusOK, updated)
}

func (s *Server) handleDeleteAlertConfig(c *fiber.Ctx) error {
	if err := core.DeleteAlertConfig(c.Context(), s.store, s.log, c.Params("configID")); err != nil {
		return s.sendDomainError(c, err, "Failed to delete alert configuration")
	}
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"message": "Alert configuration deleted"})
}

func (s *Server) handleListAlertEvents(c *fiber.Ctx) error {
	limit := models.DefaultAlertEventLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return SendErrorWithType(c, fiber.StatusBadRequest, "limit must be a positive integer", models.ValidationErrorType)
		}
		limit = parsed
	}

	events, err := core.ListAlertEvents(c.Context(), s.store, s.log, c.Params("configID"), limit)
	if err != nil {
		return s.sendDomainError(c, err, "Failed to list alert events")
	}
	return SendSuccess(c, fiber.StatusOK, events)
}

// handleGenerateBlogImage proxies a header image request to the AI gateway.
func (s *Server) handleGenerateBlogImage(c *fiber.Ctx) error {
	if s.images == nil {
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Image generation is not configured", models.ExternalServiceErrorType)
	}
	var req models.GenerateImageRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	resp, err := core.GenerateBlogImage(c.Context(), s.images, s.log, &req)
	if err != nil {
		return s.sendDomainError(c, err, "Failed to generate image")
	}
	return SendSuccess(c, fiber.StatusOK, resp)
}
