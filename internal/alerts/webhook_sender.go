package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type WebhookSenderOptions struct {
	Timeout       time.Duration
	SkipTLSVerify bool
	Logger        *slog.Logger
}

// WebhookSender posts fired alerts as JSON to every configured URL.
type WebhookSender struct {
	client *http.Client
	logger *slog.Logger
}

type webhookPayload struct {
	EventID      string    `json:"event_id"`
	ConfigID     string    `json:"alert_config_id"`
	FunnelID     string    `json:"funnel_id"`
	FunnelName   string    `json:"funnel_name"`
	AlertType    string    `json:"alert_type"`
	Comparison   string    `json:"comparison"`
	Threshold    float64   `json:"threshold"`
	MetricValue  float64   `json:"metric_value"`
	Message      string    `json:"message"`
	TriggeredAt  time.Time `json:"triggered_at"`
	DashboardURL string    `json:"dashboard_url,omitempty"`
}

func NewWebhookSender(opts WebhookSenderOptions) *WebhookSender {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout, Transport: transport},
		logger: logger.With("component", "alert_webhook_sender"),
	}
}

func (s *WebhookSender) Send(ctx context.Context, notification AlertNotification) error {
	if len(notification.WebhookURLs) == 0 {
		return nil
	}
	body, err := json.Marshal(webhookPayload{
		EventID:      notification.EventID,
		ConfigID:     notification.ConfigID,
		FunnelID:     notification.FunnelID,
		FunnelName:   notification.FunnelName,
		AlertType:    string(notification.AlertType),
		Comparison:   string(notification.Comparison),
		Threshold:    notification.Threshold,
		MetricValue:  notification.MetricValue,
		Message:      notification.Message,
		TriggeredAt:  notification.TriggeredAt,
		DashboardURL: notification.DashboardURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var errs []string
	for _, url := range notification.WebhookURLs {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		request.Header.Set("Content-Type", "application/json")
		response, err := s.client.Do(request)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		responseBody, readErr := io.ReadAll(io.LimitReader(response.Body, 8<<10))
		_ = response.Body.Close()
		if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
			if readErr != nil {
				errs = append(errs, fmt.Sprintf("%s: status %d (body read error: %v)", url, response.StatusCode, readErr))
				continue
			}
			trimmed := strings.TrimSpace(string(responseBody))
			if trimmed == "" {
				trimmed = response.Status
			}
			errs = append(errs, fmt.Sprintf("%s: status %d (%s)", url, response.StatusCode, trimmed))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("webhook delivery failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
