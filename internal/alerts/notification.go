package alerts

import (
	"context"
	"time"

	"github.com/bargn/bargn/pkg/models"
)

// AlertNotification is a recorded alert ready for delivery to secondary channels.
type AlertNotification struct {
	EventID      string
	ConfigID     string
	FunnelID     string
	FunnelName   string
	AlertType    models.AlertType
	Comparison   models.Comparison
	Threshold    float64
	MetricValue  float64
	Message      string
	TriggeredAt  time.Time
	DashboardURL string
	WebhookURLs  []string
}

// AlertSender abstracts delivery of alert notifications to channels other than email.
type AlertSender interface {
	Send(ctx context.Context, notification AlertNotification) error
}

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

func newNotification(alert models.FiredAlert, eventID string) AlertNotification {
	return AlertNotification{
		EventID:     eventID,
		ConfigID:    alert.ConfigID,
		FunnelID:    alert.FunnelID,
		FunnelName:  alert.FunnelName,
		AlertType:   alert.AlertType,
		Comparison:  alert.Comparison,
		Threshold:   alert.Threshold,
		MetricValue: alert.MetricValue,
		Message:     alert.Message,
		TriggeredAt: alert.TriggeredAt,
	}
}
