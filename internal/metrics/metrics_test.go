package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWritePrometheus(t *testing.T) {
	ObserveEvaluation(time.Now(), false)
	IncAlertFired("conversion_rate")
	IncNotification(true)
	ObserveAIRequest("complete", "ok", time.Now())

	var buf bytes.Buffer
	WritePrometheus(&buf)
	out := buf.String()

	for _, want := range []string{
		"bargn_alert_evaluations_total",
		`bargn_alerts_fired_total{type="conversion_rate"}`,
		`bargn_alert_notifications_total{status="sent"}`,
		`bargn_ai_requests_total{operation="complete",outcome="ok"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("WritePrometheus() output missing %q", want)
		}
	}
}
