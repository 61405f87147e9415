// Package core holds the validated operations behind the alert configuration
// management endpoints.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bargn/bargn/pkg/models"
)

var (
	// ErrAlertConfigNotFound is returned when an alert configuration cannot be located.
	ErrAlertConfigNotFound = fmt.Errorf("alert configuration %w", models.ErrNotFound)
	// ErrInvalidAlertConfiguration indicates the request payload failed validation.
	ErrInvalidAlertConfiguration = fmt.Errorf("%w: invalid alert configuration", models.ErrInvalidArgument)
)

// AlertConfigStore is the persistence used by the alert configuration operations.
type AlertConfigStore interface {
	GetFunnelSnapshot(ctx context.Context, funnelID string) (*models.FunnelSnapshot, error)
	ListAlertConfigs(ctx context.Context, funnelID string) ([]models.AlertConfiguration, error)
	GetAlertConfig(ctx context.Context, id string) (*models.AlertConfiguration, error)
	CreateAlertConfig(ctx context.Context, cfg *models.AlertConfiguration) error
	UpdateAlertConfig(ctx context.Context, cfg *models.AlertConfiguration) error
	DeleteAlertConfig(ctx context.Context, id string) error
	ListAlertEvents(ctx context.Context, configID string, limit int) ([]models.AlertEvent, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match the request payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError flattens validator errors into a single readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidAlertConfiguration, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid UUID", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be between 0 and 100", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidAlertConfiguration, strings.Join(msgs, "; "))
}

func validConfigID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ListAlertConfigs returns alert configurations, optionally filtered by funnel.
func ListAlertConfigs(ctx context.Context, store AlertConfigStore, log *slog.Logger, funnelID string) ([]models.AlertConfiguration, error) {
	if funnelID != "" && !validConfigID(funnelID) {
		return nil, fmt.Errorf("%w: funnel_id must be a valid UUID", models.ErrInvalidArgument)
	}
	configs, err := store.ListAlertConfigs(ctx, funnelID)
	if err != nil {
		log.Error("failed to list alert configurations", "funnel_id", funnelID, "error", err)
		return nil, fmt.Errorf("failed to list alert configurations: %w", err)
	}
	if configs == nil {
		configs = []models.AlertConfiguration{}
	}
	return configs, nil
}

// GetAlertConfig retrieves a single alert configuration by ID.
func GetAlertConfig(ctx context.Context, store AlertConfigStore, log *slog.Logger, id string) (*models.AlertConfiguration, error) {
	if !validConfigID(id) {
		return nil, ErrAlertConfigNotFound
	}
	cfg, err := store.GetAlertConfig(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrAlertConfigNotFound
		}
		log.Error("failed to get alert configuration", "alert_config_id", id, "error", err)
		return nil, fmt.Errorf("failed to get alert configuration: %w", err)
	}
	return cfg, nil
}

// CreateAlertConfig validates the request and stores a new configuration.
// New configurations are enabled unless is_enabled is explicitly false.
func CreateAlertConfig(ctx context.Context, store AlertConfigStore, log *slog.Logger, req *models.CreateAlertConfigRequest) (*models.AlertConfiguration, error) {
	if req == nil {
		return nil, ErrInvalidAlertConfiguration
	}
	req.NotificationEmail = strings.TrimSpace(req.NotificationEmail)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if _, err := store.GetFunnelSnapshot(ctx, req.FunnelID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: funnel %s does not exist", ErrInvalidAlertConfiguration, req.FunnelID)
		}
		return nil, fmt.Errorf("failed to look up funnel: %w", err)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cfg := &models.AlertConfiguration{
		FunnelID:          strings.ToLower(req.FunnelID),
		AlertType:         req.AlertType,
		Threshold:         req.Threshold,
		Comparison:        req.Comparison,
		Enabled:           enabled,
		NotificationEmail: req.NotificationEmail,
	}
	if err := store.CreateAlertConfig(ctx, cfg); err != nil {
		log.Error("failed to create alert configuration", "funnel_id", req.FunnelID, "error", err)
		return nil, fmt.Errorf("failed to create alert configuration: %w", err)
	}
	log.Info("alert configuration created", "alert_config_id", cfg.ID, "funnel_id", cfg.FunnelID, "alert_type", cfg.AlertType)
	return cfg, nil
}

// UpdateAlertConfig applies the non-nil fields of req to an existing configuration.
// An empty notification_email clears the address.
func UpdateAlertConfig(ctx context.Context, store AlertConfigStore, log *slog.Logger, id string, req *models.UpdateAlertConfigRequest) (*models.AlertConfiguration, error) {
	if req == nil {
		return nil, ErrInvalidAlertConfiguration
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.NotificationEmail != nil {
		trimmed := strings.TrimSpace(*req.NotificationEmail)
		if err := validate.Var(trimmed, "omitempty,email"); err != nil {
			return nil, fmt.Errorf("%w: notification_email must be a valid email address", ErrInvalidAlertConfiguration)
		}
		req.NotificationEmail = &trimmed
	}

	existing, err := GetAlertConfig(ctx, store, log, id)
	if err != nil {
		return nil, err
	}

	if req.AlertType != nil {
		existing.AlertType = *req.AlertType
	}
	if req.Threshold != nil {
		existing.Threshold = *req.Threshold
	}
	if req.Comparison != nil {
		existing.Comparison = *req.Comparison
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}
	if req.NotificationEmail != nil {
		existing.NotificationEmail = *req.NotificationEmail
	}

	if err := store.UpdateAlertConfig(ctx, existing); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrAlertConfigNotFound
		}
		log.Error("failed to update alert configuration", "alert_config_id", id, "error", err)
		return nil, fmt.Errorf("failed to update alert configuration: %w", err)
	}
	log.Info("alert configuration updated", "alert_config_id", id)
	return existing, nil
}

// DeleteAlertConfig removes a configuration together with its events.
func DeleteAlertConfig(ctx context.Context, store AlertConfigStore, log *slog.Logger, id string) error {
	if !validConfigID(id) {
		return ErrAlertConfigNotFound
	}
	if err := store.DeleteAlertConfig(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrAlertConfigNotFound
		}
		log.Error("failed to delete alert configuration", "alert_config_id", id, "error", err)
		return fmt.Errorf("failed to delete alert configuration: %w", err)
	}
	log.Info("alert configuration deleted", "alert_config_id", id)
	return nil
}

// ListAlertEvents returns recent events for a configuration, newest first.
func ListAlertEvents(ctx context.Context, store AlertConfigStore, log *slog.Logger, id string, limit int) ([]models.AlertEvent, error) {
	if _, err := GetAlertConfig(ctx, store, log, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = models.DefaultAlertEventLimit
	}
	events, err := store.ListAlertEvents(ctx, id, limit)
	if err != nil {
		log.Error("failed to list alert events", "alert_config_id", id, "error", err)
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	if events == nil {
		events = []models.AlertEvent{}
	}
	return events, nil
}
