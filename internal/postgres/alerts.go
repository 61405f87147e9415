package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bargn/bargn/pkg/models"
)

const (
	selectAlertConfigBase = `SELECT
    id,
    funnel_id,
    alert_type,
    threshold::float8 AS threshold,
    comparison,
    is_enabled,
    COALESCE(notification_email, '') AS notification_email,
    created_at,
    updated_at
FROM alert_configurations`

	listEnabledAlertConfigsQuery = selectAlertConfigBase + `
WHERE is_enabled = true`

	listAlertConfigsQuery = selectAlertConfigBase + `
ORDER BY created_at DESC`

	listAlertConfigsByFunnelQuery = selectAlertConfigBase + `
WHERE funnel_id = $1
ORDER BY created_at DESC`

	getAlertConfigQuery = selectAlertConfigBase + `
WHERE id = $1`

	insertAlertConfigQuery = `INSERT INTO alert_configurations (
    id,
    funnel_id,
    alert_type,
    threshold,
    comparison,
    is_enabled,
    notification_email
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`

	updateAlertConfigQuery = `UPDATE alert_configurations
SET alert_type = $2,
    threshold = $3,
    comparison = $4,
    is_enabled = $5,
    notification_email = $6,
    updated_at = now()
WHERE id = $1
RETURNING updated_at`

	deleteAlertConfigQuery = `DELETE FROM alert_configurations WHERE id = $1`

	insertAlertEventQuery = `INSERT INTO alert_logs (
    id,
    alert_config_id,
    funnel_id,
    metric_value,
    threshold,
    message,
    notification_sent,
    triggered_at,
    metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	markAlertNotificationSentQuery = `UPDATE alert_logs
SET notification_sent = true
WHERE id = $1`

	listAlertEventsQuery = `SELECT
    id,
    alert_config_id,
    funnel_id,
    metric_value::float8 AS metric_value,
    threshold::float8 AS threshold,
    message,
    notification_sent,
    triggered_at,
    metadata
FROM alert_logs
WHERE alert_config_id = $1
ORDER BY triggered_at DESC
LIMIT $2`
)

// ListEnabledAlertConfigs returns every enabled alert configuration. Order is
// unspecified.
func (db *DB) ListEnabledAlertConfigs(ctx context.Context) ([]models.AlertConfiguration, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var configs []models.AlertConfiguration
	if err := db.db.SelectContext(ctx, &configs, listEnabledAlertConfigsQuery); err != nil {
		return nil, fmt.Errorf("failed to list enabled alert configurations: %w", err)
	}
	return configs, nil
}

// ListAlertConfigs returns alert configurations, optionally restricted to a funnel.
func (db *DB) ListAlertConfigs(ctx context.Context, funnelID string) ([]models.AlertConfiguration, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var (
		configs []models.AlertConfiguration
		err     error
	)
	if funnelID != "" {
		err = db.db.SelectContext(ctx, &configs, listAlertConfigsByFunnelQuery, funnelID)
	} else {
		err = db.db.SelectContext(ctx, &configs, listAlertConfigsQuery)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list alert configurations: %w", err)
	}
	return configs, nil
}

// GetAlertConfig returns a single alert configuration or models.ErrNotFound.
func (db *DB) GetAlertConfig(ctx context.Context, id string) (*models.AlertConfiguration, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var cfg models.AlertConfiguration
	if err := db.db.GetContext(ctx, &cfg, getAlertConfigQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert configuration %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert configuration %s: %w", id, err)
	}
	return &cfg, nil
}

// CreateAlertConfig inserts a new alert configuration, assigning its ID and timestamps.
func (db *DB) CreateAlertConfig(ctx context.Context, cfg *models.AlertConfiguration) error {
	if cfg == nil {
		return fmt.Errorf("alert configuration payload is required")
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	row := db.db.QueryRowxContext(ctx, insertAlertConfigQuery,
		cfg.ID,
		cfg.FunnelID,
		string(cfg.AlertType),
		cfg.Threshold,
		string(cfg.Comparison),
		cfg.Enabled,
		nullableString(cfg.NotificationEmail),
	)
	if err := row.Scan(&cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert alert configuration: %w", err)
	}
	return nil
}

// UpdateAlertConfig persists the mutable fields of an alert configuration.
func (db *DB) UpdateAlertConfig(ctx context.Context, cfg *models.AlertConfiguration) error {
	if cfg == nil {
		return fmt.Errorf("alert configuration payload is required")
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	row := db.db.QueryRowxContext(ctx, updateAlertConfigQuery,
		cfg.ID,
		string(cfg.AlertType),
		cfg.Threshold,
		string(cfg.Comparison),
		cfg.Enabled,
		nullableString(cfg.NotificationEmail),
	)
	if err := row.Scan(&cfg.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("alert configuration %s: %w", cfg.ID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to update alert configuration %s: %w", cfg.ID, err)
	}
	return nil
}

// DeleteAlertConfig removes an alert configuration and, through the foreign
// key, its events.
func (db *DB) DeleteAlertConfig(ctx context.Context, id string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	res, err := db.db.ExecContext(ctx, deleteAlertConfigQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert configuration %s: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("alert configuration %s", id))
}

// InsertAlertEvent appends an alert event. The ID is generated when empty.
func (db *DB) InsertAlertEvent(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("alert event payload is required")
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := db.db.ExecContext(ctx, insertAlertEventQuery,
		event.ID,
		event.AlertConfigID,
		event.FunnelID,
		event.MetricValue,
		event.Threshold,
		event.Message,
		event.NotificationSent,
		event.TriggeredAt,
		event.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}
	return nil
}

// MarkAlertNotificationSent flags an event whose email was delivered.
func (db *DB) MarkAlertNotificationSent(ctx context.Context, eventID string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	res, err := db.db.ExecContext(ctx, markAlertNotificationSentQuery, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark alert event %s as notified: %w", eventID, err)
	}
	return expectAffected(res, fmt.Sprintf("alert event %s", eventID))
}

// ListAlertEvents returns the most recent events of an alert configuration.
func (db *DB) ListAlertEvents(ctx context.Context, configID string, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = models.DefaultAlertEventLimit
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var events []models.AlertEvent
	if err := db.db.SelectContext(ctx, &events, listAlertEventsQuery, configID, limit); err != nil {
		return nil, fmt.Errorf("failed to list alert events for %s: %w", configID, err)
	}
	return events, nil
}

func expectAffected(res sql.Result, what string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", what, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}
