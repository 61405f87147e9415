// Package app wires the service components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bargn/bargn/internal/ai"
	"github.com/bargn/bargn/internal/alerts"
	"github.com/bargn/bargn/internal/auth"
	"github.com/bargn/bargn/internal/config"
	"github.com/bargn/bargn/internal/postgres"
	"github.com/bargn/bargn/internal/recommend"
	"github.com/bargn/bargn/internal/server"
	"github.com/bargn/bargn/pkg/logger"
)

// App represents the core application context, holding dependencies and configuration.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *postgres.DB
	AI        *ai.Client
	Evaluator *alerts.Evaluator
	Generator *recommend.Generator
	BuildInfo string
	Version   string

	scheduler *alerts.Scheduler
	server    *server.Server
}

// Options contains configuration needed when creating a new App instance.
type Options struct {
	ConfigPath string
	// Config is used as is when set, skipping ConfigPath.
	Config    *config.Config
	Logger    *slog.Logger
	BuildInfo string
	Version   string
}

// New creates and configures a new App instance.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.IsDebug())
	}

	return &App{
		Config:    cfg,
		Logger:    log,
		BuildInfo: opts.BuildInfo,
		Version:   opts.Version,
	}, nil
}

// Initialize connects to Postgres and builds the evaluator, the recorder and
// its notification channels, and the recommendation generator. The generator
// stays nil when no AI API key is configured.
func (a *App) Initialize(ctx context.Context) error {
	var err error

	a.DB, err = postgres.New(ctx, postgres.Options{
		Config: a.Config.Postgres,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize postgres: %w", err)
	}

	recorder, err := a.newRecorder()
	if err != nil {
		return err
	}

	a.Evaluator = alerts.NewEvaluator(alerts.EvaluatorOptions{
		Store:             a.DB,
		Recorder:          recorder,
		Logger:            a.Logger,
		MaxConcurrency:    a.Config.Alerts.MaxConcurrency,
		Timeout:           a.Config.Alerts.EvaluationTimeout,
		DropOffWindowDays: a.Config.Alerts.DropOffWindowDays,
	})

	if a.Config.AI.APIKey == "" {
		a.Logger.Warn("ai.api_key not set, funnel recommendations and image generation are disabled")
		return nil
	}
	a.AI, err = ai.NewClient(ai.ClientOptions{
		APIKey:      a.Config.AI.APIKey,
		Model:       a.Config.AI.Model,
		ImageModel:  a.Config.AI.ImageModel,
		MaxTokens:   a.Config.AI.MaxTokens,
		Temperature: a.Config.AI.Temperature,
		Timeout:     a.Config.AI.Timeout,
		BaseURL:     a.Config.AI.BaseURL,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AI client: %w", err)
	}
	a.Generator = recommend.NewGenerator(recommend.Options{
		Store:      a.DB,
		Completer:  a.AI,
		Logger:     a.Logger,
		WindowDays: a.Config.Recommendations.WindowDays,
		Timeout:    a.Config.Recommendations.Timeout,
	})
	return nil
}

// newRecorder builds the alert recorder. Email goes through SMTP when a relay
// is configured; every alert is also logged and, when configured, posted to
// webhooks and Alertmanager.
func (a *App) newRecorder() (*alerts.Recorder, error) {
	cfg := a.Config.Alerts

	var email alerts.EmailSender
	smtpSender := alerts.NewSMTPSender(alerts.SMTPSenderOptions{
		Host:          cfg.SMTP.Host,
		Port:          cfg.SMTP.Port,
		Username:      cfg.SMTP.Username,
		Password:      cfg.SMTP.Password,
		From:          cfg.SMTP.From,
		ReplyTo:       cfg.SMTP.ReplyTo,
		Security:      cfg.SMTP.Security,
		Timeout:       cfg.NotificationTimeout,
		SkipTLSVerify: cfg.SMTP.SkipTLSVerify,
		Logger:        a.Logger,
	})
	if smtpSender.Configured() {
		email = smtpSender
	} else {
		a.Logger.Warn("alerts.smtp not configured, alert emails will not be sent")
	}

	senders := []alerts.AlertSender{alerts.NewLogSender(a.Logger)}
	if len(cfg.WebhookURLs) > 0 {
		senders = append(senders, alerts.NewWebhookSender(alerts.WebhookSenderOptions{
			Timeout: cfg.NotificationTimeout,
			Logger:  a.Logger,
		}))
	}
	if cfg.AlertmanagerURL != "" {
		am, err := alerts.NewAlertmanagerSender(alerts.AlertmanagerOptions{
			BaseURL: cfg.AlertmanagerURL,
			Timeout: cfg.NotificationTimeout,
			Logger:  a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize alertmanager sender: %w", err)
		}
		senders = append(senders, am)
	}

	return alerts.NewRecorder(alerts.RecorderOptions{
		Store:               a.DB,
		Email:               email,
		Sender:              alerts.NewMultiSender(senders...),
		Logger:              a.Logger,
		NotificationTimeout: cfg.NotificationTimeout,
		DashboardURL:        cfg.DashboardURL,
		WebhookURLs:         cfg.WebhookURLs,
	}), nil
}

// Serve starts the HTTP server and, when enabled, the alert scheduler. It
// blocks until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Serve(ctx context.Context) error {
	if a.DB == nil {
		return errors.New("app not initialized")
	}

	var verifier auth.TokenVerifier
	if a.Config.OIDC.IssuerURL != "" {
		v, err := auth.NewOIDCVerifier(ctx, auth.OIDCOptions{
			IssuerURL:         a.Config.OIDC.IssuerURL,
			ClientID:          a.Config.OIDC.ClientID,
			RolesClaim:        a.Config.OIDC.RolesClaim,
			SkipClientIDCheck: a.Config.OIDC.SkipClientIDCheck,
			Logger:            a.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		verifier = v
	} else {
		a.Logger.Warn("oidc.issuer_url not set, admin endpoints will reject every request")
	}

	opts := server.ServerOptions{
		Config:    a.Config,
		Store:     a.DB,
		Evaluator: a.Evaluator,
		Verifier:  verifier,
		Logger:    a.Logger,
		BuildInfo: a.BuildInfo,
		Version:   a.Version,
	}
	// Assigned only when set so the handlers see a nil interface.
	if a.Generator != nil {
		opts.Generator = a.Generator
	}
	if a.AI != nil {
		opts.Images = a.AI
	}
	a.server = server.New(opts)

	if a.Config.Alerts.SchedulerEnabled {
		a.scheduler = alerts.NewScheduler(a.Evaluator, a.Config.Alerts.EvaluationInterval, a.Logger)
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	//nolint:contextcheck // the serve context is already cancelled here
	return a.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops all application components with timeouts.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.scheduler != nil {
		a.Logger.Info("stopping alert scheduler")
		a.scheduler.Stop()
	}

	if a.server != nil {
		a.Logger.Info("shutting down HTTP server")
		serverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.server.Shutdown(serverCtx); err != nil {
			a.Logger.Error("error shutting down server", "error", err)
		}
		cancel()
	}

	if a.DB != nil {
		a.Logger.Info("closing postgres connection")
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("error closing postgres", "error", err)
		}
	}

	a.Logger.Info("application shutdown complete")
	return nil
}
