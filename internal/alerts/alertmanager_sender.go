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

// alertmanagerPayload is one entry of Alertmanager's /api/v2/alerts request body.
type alertmanagerPayload struct {
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	StartsAt     time.Time         `json:"startsAt"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
}

// AlertmanagerOptions configures the Alertmanager sender.
type AlertmanagerOptions struct {
	BaseURL       string
	Timeout       time.Duration
	SkipTLSVerify bool
	Logger        *slog.Logger
	MaxRetries    int           // default 2
	RetryDelay    time.Duration // default 500ms
}

// AlertmanagerSender forwards fired funnel alerts to a Prometheus Alertmanager
// so they can be routed and silenced with existing on-call tooling.
type AlertmanagerSender struct {
	url        string
	client     *http.Client
	log        *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewAlertmanagerSender constructs a sender for the given Alertmanager base URL.
func NewAlertmanagerSender(opts AlertmanagerOptions) (*AlertmanagerSender, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("alertmanager base URL is required")
	}
	if !strings.HasSuffix(baseURL, "/api/v2/alerts") {
		baseURL += "/api/v2/alerts"
	}

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
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	return &AlertmanagerSender{
		url:        baseURL,
		client:     &http.Client{Timeout: timeout, Transport: transport},
		log:        logger.With("component", "alertmanager_sender"),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// Send publishes the notification, retrying network errors and 5xx responses
// with exponential backoff.
func (s *AlertmanagerSender) Send(ctx context.Context, n AlertNotification) error {
	body, err := json.Marshal([]alertmanagerPayload{{
		Labels: map[string]string{
			"alertname":  "BargnFunnelAlert",
			"funnel":     n.FunnelName,
			"funnel_id":  n.FunnelID,
			"alert_type": string(n.AlertType),
			"comparison": string(n.Comparison),
		},
		Annotations: map[string]string{
			"summary":      n.Message,
			"metric_value": fmt.Sprintf("%.1f", n.MetricValue),
			"threshold":    fmt.Sprintf("%g", n.Threshold),
		},
		StartsAt:     n.TriggeredAt,
		GeneratorURL: n.DashboardURL,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay * time.Duration(1<<uint(attempt-1))
			s.log.Warn("retrying alertmanager request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create alertmanager request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send alert to Alertmanager: %w", err)
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("alertmanager returned server error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		default:
			return fmt.Errorf("alertmanager returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
	}
	return fmt.Errorf("alertmanager request failed after %d retries: %w", s.maxRetries, lastErr)
}
