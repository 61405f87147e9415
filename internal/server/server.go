// Package server exposes the funnel alerting and recommendation operations
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"

	_ "github.com/bargn/bargn/docs"
	"github.com/bargn/bargn/internal/alerts"
	"github.com/bargn/bargn/internal/auth"
	"github.com/bargn/bargn/internal/config"
	"github.com/bargn/bargn/internal/core"
	"github.com/bargn/bargn/internal/metrics"
	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

const (
	allowedHeaders = "authorization, x-client-info, apikey, content-type"
	allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

// Store is the persistence used by the HTTP handlers.
type Store interface {
	core.AlertConfigStore
	ListFunnelSnapshots(ctx context.Context) ([]models.FunnelSnapshot, error)
	Ping(ctx context.Context) error
}

// AlertEvaluator runs a full alert evaluation.
type AlertEvaluator interface {
	EvaluateAll(ctx context.Context) (*alerts.EvaluationResult, error)
}

// RecommendationGenerator produces AI recommendations for a funnel.
type RecommendationGenerator interface {
	Generate(ctx context.Context, funnelID string) (*models.RecommendationReport, error)
}

// ServerOptions holds the dependencies of a Server. Generator, Images and
// Verifier are optional; the endpoints depending on them report that the
// feature is not configured.
type ServerOptions struct {
	Config    *config.Config
	Store     Store
	Evaluator AlertEvaluator
	Generator RecommendationGenerator
	Images    core.ImageGenerator
	Verifier  auth.TokenVerifier
	Logger    *slog.Logger
	BuildInfo string
	Version   string
}

// Server is the HTTP front of the service.
type Server struct {
	app       *fiber.App
	config    *config.Config
	store     Store
	evaluator AlertEvaluator
	generator RecommendationGenerator
	images    core.ImageGenerator
	verifier  auth.TokenVerifier
	log       *slog.Logger
	buildInfo string
	version   string
}

// New creates a Server and registers every route.
func New(opts ServerOptions) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "server")

	s := &Server{
		config:    cfg,
		store:     opts.Store,
		evaluator: opts.Evaluator,
		generator: opts.Generator,
		images:    opts.Images,
		verifier:  opts.Verifier,
		log:       log,
		buildInfo: opts.BuildInfo,
		version:   opts.Version,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "bargn",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.HTTPServerTimeout,
		WriteTimeout:          cfg.Server.HTTPServerTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(handlePreflight)
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: allowedHeaders,
		AllowMethods: allowedMethods,
	}))
	s.app.Use(s.observeRequest)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api/v1")

	api.Get("/health", s.handleHealth)
	api.Get("/meta", s.handleGetMeta)
	api.Get("/metrics", s.handleMetrics)
	api.Get("/swagger/*", swagger.HandlerDefault)

	funnels := api.Group("/funnels")
	funnels.Get("/", s.handleListFunnels)
	funnels.Post("/alerts/check", s.handleEvaluateAlerts)
	funnels.Post("/analyze", s.handleAnalyzeFunnel)

	admin := api.Group("/admin", s.requireAuth, s.requireRole(s.config.OIDC.AdminRole))
	admin.Get("/alert-configs", s.handleListAlertConfigs)
	admin.Post("/alert-configs", s.handleCreateAlertConfig)
	admin.Get("/alert-configs/:configID", s.handleGetAlertConfig)
	admin.Put("/alert-configs/:configID", s.handleUpdateAlertConfig)
	admin.Delete("/alert-configs/:configID", s.handleDeleteAlertConfig)
	admin.Get("/alert-configs/:configID/events", s.handleListAlertEvents)
	admin.Post("/blog-images", s.handleGenerateBlogImage)
}

// handlePreflight answers every OPTIONS request with an empty 200 and the
// CORS headers, ahead of the cors middleware which would reply 204.
func handlePreflight(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodOptions {
		return c.Next()
	}
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, allowedHeaders)
	c.Set(fiber.HeaderAccessControlAllowMethods, allowedMethods)
	c.Status(fiber.StatusOK)
	return nil
}

func (s *Server) observeRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	route := c.Route().Path
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	metrics.ObserveHTTPRequest(c.Method(), route, status, start)
	return err
}

// errorHandler renders errors escaping the handlers, including unknown
// routes and recovered panics, as JSON.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		errType := models.GeneralErrorType
		if fe.Code == fiber.StatusNotFound {
			errType = models.NotFoundErrorType
		}
		return SendErrorWithType(c, fe.Code, fe.Message, errType)
	}
	s.log.Error("unhandled request error", "path", c.Path(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID), "error", err)
	return SendErrorWithType(c, fiber.StatusInternalServerError, "Internal server error", models.GeneralErrorType)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", "address", s.config.Server.Address, "version", s.version)
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
