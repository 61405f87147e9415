package alerts

import (
	"context"
	"log/slog"

	"github.com/bargn/bargn/pkg/logger"
)

// LogSender writes every notification to the structured log. It keeps a trace
// of fired alerts even when no delivery channel is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = logger.Discard()
	}
	return &LogSender{log: log.With("component", "alert_notifier")}
}

func (s *LogSender) Send(_ context.Context, n AlertNotification) error {
	s.log.Info("alert fired",
		"event_id", n.EventID,
		"alert_config_id", n.ConfigID,
		"funnel", n.FunnelName,
		"alert_type", n.AlertType,
		"value", n.MetricValue,
		"threshold", n.Threshold,
		"message", n.Message,
	)
	return nil
}
