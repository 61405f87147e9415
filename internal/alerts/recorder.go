package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bargn/bargn/internal/metrics"
	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

// EventStore is the write side used to persist alert events.
type EventStore interface {
	InsertAlertEvent(ctx context.Context, event *models.AlertEvent) error
	MarkAlertNotificationSent(ctx context.Context, eventID string) error
}

// RecorderOptions encapsulates the dependencies of a Recorder.
type RecorderOptions struct {
	Store  EventStore
	Email  EmailSender
	Sender AlertSender
	Logger *slog.Logger

	NotificationTimeout time.Duration
	DashboardURL        string
	WebhookURLs         []string
}

// Recorder writes an AlertEvent for every fired alert and then attempts
// notification delivery.
type Recorder struct {
	store        EventStore
	email        EmailSender
	sender       AlertSender
	log          *slog.Logger
	timeout      time.Duration
	dashboardURL string
	webhookURLs  []string
}

func NewRecorder(opts RecorderOptions) *Recorder {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	timeout := opts.NotificationTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Recorder{
		store:        opts.Store,
		email:        opts.Email,
		sender:       opts.Sender,
		log:          log.With("component", "alert_recorder"),
		timeout:      timeout,
		dashboardURL: opts.DashboardURL,
		webhookURLs:  opts.WebhookURLs,
	}
}

// Record persists the alert with notification_sent=false, then emails the
// configured address and flags the event on success. Only a failure to
// persist the event is returned; delivery failures are logged.
func (r *Recorder) Record(ctx context.Context, alert models.FiredAlert) error {
	triggeredAt := alert.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = time.Now().UTC()
	}
	event := &models.AlertEvent{
		ID:               uuid.NewString(),
		AlertConfigID:    alert.ConfigID,
		FunnelID:         alert.FunnelID,
		MetricValue:      alert.MetricValue,
		Threshold:        alert.Threshold,
		Message:          alert.Message,
		NotificationSent: false,
		TriggeredAt:      triggeredAt,
		Metadata: models.EventMetadata{
			"funnel_name": alert.FunnelName,
			"alert_type":  string(alert.AlertType),
			"comparison":  string(alert.Comparison),
		},
	}
	if err := r.store.InsertAlertEvent(ctx, event); err != nil {
		metrics.IncRecordError()
		return fmt.Errorf("failed to record alert event for config %s: %w", alert.ConfigID, err)
	}

	notification := newNotification(alert, event.ID)
	notification.TriggeredAt = triggeredAt
	notification.DashboardURL = r.dashboardURL
	notification.WebhookURLs = r.webhookURLs

	if alert.NotificationEmail != "" {
		r.sendEmail(ctx, alert.NotificationEmail, notification)
	}

	if r.sender != nil {
		sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
		if err := r.sender.Send(sendCtx, notification); err != nil {
			r.log.Warn("alert notification delivery failed", "event_id", event.ID, "error", err)
		}
		cancel()
	}
	return nil
}

func (r *Recorder) sendEmail(ctx context.Context, to string, n AlertNotification) {
	if r.email == nil {
		r.log.Warn("alert has a notification email but no email sender is configured", "event_id", n.EventID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	subject, body := buildAlertEmail(n)
	if err := r.email.Send(sendCtx, to, subject, body); err != nil {
		metrics.IncNotification(false)
		r.log.Warn("alert email failed", "event_id", n.EventID, "alert_config_id", n.ConfigID, "error", err)
		return
	}
	metrics.IncNotification(true)

	if err := r.store.MarkAlertNotificationSent(ctx, n.EventID); err != nil {
		r.log.Error("failed to mark alert notification as sent", "event_id", n.EventID, "error", err)
	}
}
