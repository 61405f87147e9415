package server

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bargn/bargn/pkg/models"
)

// handleEvaluateAlerts runs every enabled alert configuration.
// @Summary Evaluate funnel alerts
// @Description Evaluates every enabled alert configuration and records the alerts that fire
// @Tags funnels
// @Produce json
// @Success 200 {object} models.EvaluateAlertsResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /funnels/alerts/check [post]
func (s *Server) handleEvaluateAlerts(c *fiber.Ctx) error {
	result, err := s.evaluator.EvaluateAll(c.Context())
	if err != nil {
		s.log.Error("alert evaluation failed", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, err.Error(), models.DatabaseErrorType)
	}

	fired := result.Fired
	if fired == nil {
		fired = []models.FiredAlert{}
	}
	if len(result.Failures) > 0 {
		s.log.Warn("alert evaluation finished with skipped configs", "failures", len(result.Failures), "fired", len(fired))
	}
	return c.Status(fiber.StatusOK).JSON(models.EvaluateAlertsResponse{
		Success:         true,
		AlertsTriggered: len(fired),
		Alerts:          fired,
	})
}

// handleAnalyzeFunnel asks the AI gateway for recommendations for one funnel.
// @Summary Analyze a funnel
// @Description Gathers funnel metrics and returns AI-generated recommendations
// @Tags funnels
// @Accept json
// @Produce json
// @Param request body models.AnalyzeFunnelRequest true "Funnel to analyze"
// @Success 200 {object} models.AnalyzeFunnelResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /funnels/analyze [post]
func (s *Server) handleAnalyzeFunnel(c *fiber.Ctx) error {
	var req models.AnalyzeFunnelRequest
	// Parsed regardless of Content-Type.
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}
	req.FunnelID = strings.TrimSpace(req.FunnelID)
	if req.FunnelID == "" {
		return SendErrorWithType(c, fiber.StatusBadRequest, "funnel_id is required", models.ValidationErrorType)
	}
	if s.generator == nil {
		return SendErrorWithType(c, fiber.StatusInternalServerError, "AI recommendations are not configured", models.ExternalServiceErrorType)
	}

	report, err := s.generator.Generate(c.Context(), req.FunnelID)
	if err != nil {
		return s.sendDomainError(c, err, "Failed to analyze funnel")
	}
	return c.Status(fiber.StatusOK).JSON(models.AnalyzeFunnelResponse{
		Success:         true,
		Funnel:          report.Funnel,
		Recommendations: report.Recommendations,
		AnalyzedAt:      report.GeneratedAt,
	})
}

// handleListFunnels returns the current snapshot of every funnel.
// @Summary List funnels
// @Tags funnels
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.FunnelSnapshot}
// @Router /funnels [get]
func (s *Server) handleListFunnels(c *fiber.Ctx) error {
	snapshots, err := s.store.ListFunnelSnapshots(c.Context())
	if err != nil {
		s.log.Error("failed to list funnels", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to list funnels", models.DatabaseErrorType)
	}
	if snapshots == nil {
		snapshots = []models.FunnelSnapshot{}
	}
	return SendSuccess(c, fiber.StatusOK, snapshots)
}
