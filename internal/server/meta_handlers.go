package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bargn/bargn/internal/metrics"
)

// --- Meta Handlers ---

// MetaResponse represents the server metadata response
type MetaResponse struct {
	Version                  string `json:"version"`
	BuildInfo                string `json:"build_info,omitempty"`
	HTTPServerTimeout        string `json:"http_server_timeout"`
	OIDCIssuer               string `json:"oidc_issuer,omitempty"`
	AlertSchedulerEnabled    bool   `json:"alert_scheduler_enabled"`
	AlertDropOffWindowDays   int    `json:"alert_drop_off_window_days"`
	RecommendationWindowDays int    `json:"recommendation_window_days"`
	RecommendationsEnabled   bool   `json:"recommendations_enabled"`
}

// handleGetMeta returns server metadata including version and configuration
// URL: GET /api/v1/meta
// Public endpoint - no authentication required
// @Summary Get server metadata
// @Description Returns server metadata including version and configuration information
// @Tags meta
// @Accept json
// @Produce json
// @Success 200 {object} MetaResponse "Server metadata"
// @Router /meta [get]
func (s *Server) handleGetMeta(c *fiber.Ctx) error {
	meta := MetaResponse{
		Version:                  s.version,
		BuildInfo:                s.buildInfo,
		HTTPServerTimeout:        s.config.Server.HTTPServerTimeout.String(),
		AlertSchedulerEnabled:    s.config.Alerts.SchedulerEnabled,
		AlertDropOffWindowDays:   s.config.Alerts.DropOffWindowDays,
		RecommendationWindowDays: s.config.Recommendations.WindowDays,
		RecommendationsEnabled:   s.generator != nil,
	}
	if s.verifier != nil {
		meta.OIDCIssuer = s.config.OIDC.IssuerURL
	}

	return SendSuccess(c, fiber.StatusOK, meta)
}

// handleHealth reports whether the database is reachable.
// @Summary Health check
// @Tags meta
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /health [get]
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("health check failed", "error", err)
		return SendError(c, fiber.StatusServiceUnavailable, "database unavailable")
	}
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"status": "ok"})
}

// handleMetrics exposes service metrics in the Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	metrics.WritePrometheus(c.Response().BodyWriter())
	return nil
}
