// Package config loads the service configuration from a TOML file and
// BARGN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file values.
// Levels are separated by a double underscore: BARGN_POSTGRES__DSN -> postgres.dsn.
const EnvPrefix = "BARGN_"

// Config is the full service configuration.
type Config struct {
	Server          ServerConfig          `koanf:"server"`
	Logging         LoggingConfig         `koanf:"logging"`
	Postgres        PostgresConfig        `koanf:"postgres"`
	Alerts          AlertsConfig          `koanf:"alerts"`
	Recommendations RecommendationsConfig `koanf:"recommendations"`
	AI              AIConfig              `koanf:"ai"`
	OIDC            OIDCConfig            `koanf:"oidc"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address           string        `koanf:"address"`
	HTTPServerTimeout time.Duration `koanf:"http_server_timeout"`
	BodyLimit         int           `koanf:"body_limit"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// PostgresConfig holds database connection settings.
type PostgresConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
	RunMigrations   bool          `koanf:"run_migrations"`
}

// SMTPConfig holds outbound email settings for alert notifications.
type SMTPConfig struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	Username      string `koanf:"username"`
	Password      string `koanf:"password"`
	From          string `koanf:"from"`
	ReplyTo       string `koanf:"reply_to"`
	Security      string `koanf:"security"` // none, starttls, tls
	SkipTLSVerify bool   `koanf:"skip_tls_verify"`
}

// AlertsConfig holds alert evaluation and notification settings.
type AlertsConfig struct {
	SchedulerEnabled    bool          `koanf:"scheduler_enabled"`
	EvaluationInterval  time.Duration `koanf:"evaluation_interval"`
	MaxConcurrency      int           `koanf:"max_concurrency"`
	EvaluationTimeout   time.Duration `koanf:"evaluation_timeout"`
	DropOffWindowDays   int           `koanf:"drop_off_window_days"`
	NotificationTimeout time.Duration `koanf:"notification_timeout"`
	DashboardURL        string        `koanf:"dashboard_url"`
	WebhookURLs         []string      `koanf:"webhook_urls"`
	AlertmanagerURL     string        `koanf:"alertmanager_url"`
	SMTP                SMTPConfig    `koanf:"smtp"`
}

// RecommendationsConfig holds funnel analysis settings.
type RecommendationsConfig struct {
	WindowDays int           `koanf:"window_days"`
	Timeout    time.Duration `koanf:"timeout"`
}

// AIConfig holds settings for the OpenAI-compatible gateway.
type AIConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	ImageModel  string        `koanf:"image_model"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float32       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
}

// OIDCConfig holds bearer token verification settings for privileged endpoints.
type OIDCConfig struct {
	IssuerURL         string `koanf:"issuer_url"`
	ClientID          string `koanf:"client_id"`
	RolesClaim        string `koanf:"roles_claim"`
	AdminRole         string `koanf:"admin_role"`
	SkipClientIDCheck bool   `koanf:"skip_client_id_check"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           ":8080",
			HTTPServerTimeout: 90 * time.Second,
			BodyLimit:         1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    10 * time.Second,
		},
		Alerts: AlertsConfig{
			EvaluationInterval:  15 * time.Minute,
			MaxConcurrency:      4,
			EvaluationTimeout:   15 * time.Second,
			DropOffWindowDays:   7,
			NotificationTimeout: 10 * time.Second,
			SMTP: SMTPConfig{
				Port:     587,
				Security: "starttls",
			},
		},
		Recommendations: RecommendationsConfig{
			WindowDays: 30,
			Timeout:    60 * time.Second,
		},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			ImageModel:  "dall-e-3",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     45 * time.Second,
		},
		OIDC: OIDCConfig{
			RolesClaim: "roles",
			AdminRole:  "admin",
		},
	}
}

// Load reads the configuration file at path (skipped when empty) and then
// applies BARGN_* environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.Alerts.MaxConcurrency < 1 {
		errs = append(errs, errors.New("alerts.max_concurrency must be at least 1"))
	}
	if c.Alerts.DropOffWindowDays < 1 {
		errs = append(errs, errors.New("alerts.drop_off_window_days must be at least 1"))
	}
	if c.Recommendations.WindowDays < 1 {
		errs = append(errs, errors.New("recommendations.window_days must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDebug reports whether debug logging is requested.
func (c *Config) IsDebug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}

// envToKey converts an environment variable name to a config key,
// e.g. BARGN_ALERTS__MAX_CONCURRENCY -> alerts.max_concurrency.
func envToKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
