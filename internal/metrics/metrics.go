// Package metrics exposes service counters in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	evaluationsTotal       = metrics.NewCounter(`bargn_alert_evaluations_total`)
	evaluationErrorsTotal  = metrics.NewCounter(`bargn_alert_evaluation_errors_total`)
	partialFailuresTotal   = metrics.NewCounter(`bargn_alert_partial_failures_total`)
	evaluationDuration     = metrics.NewHistogram(`bargn_alert_evaluation_duration_seconds`)
	notificationsSentTotal = metrics.NewCounter(`bargn_alert_notifications_total{status="sent"}`)
	notificationsFailTotal = metrics.NewCounter(`bargn_alert_notifications_total{status="failed"}`)
	recordErrorsTotal      = metrics.NewCounter(`bargn_alert_record_errors_total`)
)

// ObserveEvaluation records a completed evaluation run. failed marks a run
// aborted by a fatal error.
func ObserveEvaluation(start time.Time, failed bool) {
	evaluationsTotal.Inc()
	if failed {
		evaluationErrorsTotal.Inc()
	}
	evaluationDuration.UpdateDuration(start)
}

// IncPartialFailure counts a config or cohort dimension skipped because of an error.
func IncPartialFailure() {
	partialFailuresTotal.Inc()
}

// IncAlertFired counts a fired alert by metric type.
func IncAlertFired(alertType string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`bargn_alerts_fired_total{type=%q}`, alertType)).Inc()
}

// IncNotification counts an email notification attempt.
func IncNotification(sent bool) {
	if sent {
		notificationsSentTotal.Inc()
		return
	}
	notificationsFailTotal.Inc()
}

// IncRecordError counts alert events that could not be persisted.
func IncRecordError() {
	recordErrorsTotal.Inc()
}

// ObserveAIRequest records an outbound AI call by operation and outcome.
func ObserveAIRequest(operation, outcome string, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`bargn_ai_requests_total{operation=%q,outcome=%q}`, operation, outcome)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`bargn_ai_request_duration_seconds{operation=%q}`, operation)).UpdateDuration(start)
}

// ObserveHTTPRequest records a served API request.
func ObserveHTTPRequest(method, route string, status int, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`bargn_http_requests_total{method=%q,route=%q,status="%d"}`, method, route, status)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`bargn_http_request_duration_seconds{route=%q}`, route)).UpdateDuration(start)
}

// WritePrometheus writes every registered metric, including process metrics.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
