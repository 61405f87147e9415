package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AlertType selects the funnel metric an alert configuration watches.
type AlertType string

const (
	// AlertTypeConversionRate compares the funnel completion rate against the threshold.
	AlertTypeConversionRate AlertType = "conversion_rate"
	// AlertTypeDropOffRate compares the mean per-step drop-off rate against the threshold.
	AlertTypeDropOffRate AlertType = "drop_off_rate"
)

func (t AlertType) IsValid() bool {
	switch t {
	case AlertTypeConversionRate, AlertTypeDropOffRate:
		return true
	default:
		return false
	}
}

// Label returns a human readable name used in alert messages and emails.
func (t AlertType) Label() string {
	switch t {
	case AlertTypeConversionRate:
		return "Conversion rate"
	case AlertTypeDropOffRate:
		return "Drop-off rate"
	default:
		return string(t)
	}
}

// Comparison is the direction in which a metric has to cross the threshold to fire.
type Comparison string

const (
	ComparisonBelow Comparison = "below"
	ComparisonAbove Comparison = "above"
)

func (c Comparison) IsValid() bool {
	return c == ComparisonBelow || c == ComparisonAbove
}

// AlertConfiguration is an operator-defined rule comparing a funnel metric to a threshold.
type AlertConfiguration struct {
	ID                string     `db:"id" json:"id"`
	FunnelID          string     `db:"funnel_id" json:"funnel_id"`
	AlertType         AlertType  `db:"alert_type" json:"alert_type"`
	Threshold         float64    `db:"threshold" json:"threshold"`
	Comparison        Comparison `db:"comparison" json:"comparison"`
	Enabled           bool       `db:"is_enabled" json:"is_enabled"`
	NotificationEmail string     `db:"notification_email" json:"notification_email,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// EventMetadata is the free-form JSON document stored alongside an alert event.
type EventMetadata map[string]any

// Value implements driver.Valuer so metadata is stored as a JSON document.
func (m EventMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner for jsonb/json columns.
func (m *EventMetadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = EventMetadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	out := EventMetadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("failed to decode event metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// AlertEvent is the append-only record written each time an alert configuration fires.
type AlertEvent struct {
	ID               string        `db:"id" json:"id"`
	AlertConfigID    string        `db:"alert_config_id" json:"alert_config_id"`
	FunnelID         string        `db:"funnel_id" json:"funnel_id"`
	MetricValue      float64       `db:"metric_value" json:"metric_value"`
	Threshold        float64       `db:"threshold" json:"threshold"`
	Message          string        `db:"message" json:"message"`
	NotificationSent bool          `db:"notification_sent" json:"notification_sent"`
	TriggeredAt      time.Time     `db:"triggered_at" json:"triggered_at"`
	Metadata         EventMetadata `db:"metadata" json:"metadata"`
}

// FiredAlert is the outcome of a configuration whose comparison matched during evaluation.
type FiredAlert struct {
	ConfigID          string     `json:"alert_config_id"`
	FunnelID          string     `json:"funnel_id"`
	FunnelName        string     `json:"funnel_name"`
	AlertType         AlertType  `json:"alert_type"`
	Comparison        Comparison `json:"comparison"`
	Threshold         float64    `json:"threshold"`
	MetricValue       float64    `json:"metric_value"`
	Message           string     `json:"message"`
	NotificationEmail string     `json:"-"`
	TriggeredAt       time.Time  `json:"triggered_at"`
}

// CreateAlertConfigRequest defines the payload required to create an alert configuration.
type CreateAlertConfigRequest struct {
	FunnelID          string     `json:"funnel_id" validate:"required,uuid"`
	AlertType         AlertType  `json:"alert_type" validate:"required,oneof=conversion_rate drop_off_rate"`
	Threshold         float64    `json:"threshold" validate:"gte=0,lte=100"`
	Comparison        Comparison `json:"comparison" validate:"required,oneof=below above"`
	Enabled           *bool      `json:"is_enabled"`
	NotificationEmail string     `json:"notification_email" validate:"omitempty,email"`
}

// UpdateAlertConfigRequest defines updatable fields for an alert configuration.
type UpdateAlertConfigRequest struct {
	AlertType         *AlertType  `json:"alert_type" validate:"omitempty,oneof=conversion_rate drop_off_rate"`
	Threshold         *float64    `json:"threshold" validate:"omitempty,gte=0,lte=100"`
	Comparison        *Comparison `json:"comparison" validate:"omitempty,oneof=below above"`
	Enabled           *bool       `json:"is_enabled"`
	NotificationEmail *string     `json:"notification_email"`
}

// DefaultAlertEventLimit controls the number of events returned when unspecified.
const DefaultAlertEventLimit = 50
