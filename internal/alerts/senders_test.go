package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bargn/bargn/pkg/models"
)

func testNotification() AlertNotification {
	return newNotification(firedAlert("ops@example.com"), "evt-1")
}

func TestBuildAlertEmail(t *testing.T) {
	n := testNotification()
	n.DashboardURL = "https://bargn.example/admin"

	subject, body := buildAlertEmail(n)
	if subject != "[Bargn] Conversion rate alert: Checkout" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"Funnel: Checkout", "Current value: 3.2%", "Threshold: below 5%", "View: https://bargn.example/admin"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTPSender(SMTPSenderOptions{})
	if s.Configured() {
		t.Fatal("empty sender should not be configured")
	}
	if err := s.Send(context.Background(), "ops@example.com", "s", "b"); err == nil {
		t.Error("Send() should fail without smtp settings")
	}
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s := NewSMTPSender(SMTPSenderOptions{Host: "smtp.example.com", Port: 25, From: "alerts@example.com", ReplyTo: "team@example.com", Security: "bogus"})
	if s.security != smtpSecurityStartTLS {
		t.Errorf("security = %q, want starttls fallback", s.security)
	}
	msg := string(s.buildMessage("ops@example.com", "Subject line", "hello\n"))
	for _, want := range []string{"From: alerts@example.com", "To: ops@example.com", "Subject: Subject line", "Reply-To: team@example.com", "\r\n\r\nhello\n"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestWebhookSender(t *testing.T) {
	var got webhookPayload
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()

	sender := NewWebhookSender(WebhookSenderOptions{Timeout: time.Second})

	n := testNotification()
	n.WebhookURLs = []string{ok.URL}
	if err := sender.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.EventID != "evt-1" || got.FunnelName != "Checkout" || got.AlertType != string(models.AlertTypeConversionRate) {
		t.Errorf("payload = %+v", got)
	}

	n.WebhookURLs = []string{ok.URL, bad.URL}
	err := sender.Send(context.Background(), n)
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("Send() error = %v, want status 502", err)
	}
}

func TestAlertmanagerSender_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/alerts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"funnel":"Checkout"`) {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, err := NewAlertmanagerSender(AlertmanagerOptions{BaseURL: srv.URL, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewAlertmanagerSender() error = %v", err)
	}
	if err := sender.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestAlertmanagerSender_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad labels", http.StatusBadRequest)
	}))
	defer srv.Close()

	sender, _ := NewAlertmanagerSender(AlertmanagerOptions{BaseURL: srv.URL + "/", RetryDelay: time.Millisecond})
	if err := sender.Send(context.Background(), testNotification()); err == nil {
		t.Fatal("Send() should fail on 400")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNewAlertmanagerSender_RequiresURL(t *testing.T) {
	if _, err := NewAlertmanagerSender(AlertmanagerOptions{}); err == nil {
		t.Error("expected error for empty base URL")
	}
}

type failingSender struct{ err error }

func (f failingSender) Send(context.Context, AlertNotification) error { return f.err }

func TestMultiSender(t *testing.T) {
	capture := &captureSender{}
	first, second := errors.New("first"), errors.New("second")
	m := NewMultiSender(capture, failingSender{first}, nil, failingSender{second})

	err := m.Send(context.Background(), testNotification())
	if err == nil {
		t.Fatal("Send() should aggregate failures")
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("error = %v, want both channel failures", err)
	}
	if len(capture.got) != 1 {
		t.Errorf("healthy sender should still be called")
	}

	if err := NewMultiSender().Send(context.Background(), testNotification()); err != nil {
		t.Errorf("empty MultiSender error = %v", err)
	}
}

func TestScheduler_RunsImmediately(t *testing.T) {
	store := &fakeStore{
		configs:   []models.AlertConfiguration{conversionConfig("cfg-1", "f-1", 5, models.ComparisonBelow)},
		snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Checkout", CompletionRate: 1}},
	}
	rec := &fakeRecorder{}
	s := NewScheduler(newTestEvaluator(store, rec), time.Hour, nil)

	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.alerts)
		rec.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not evaluate on start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()
}

func TestLogSender_NilLogger(t *testing.T) {
	if err := NewLogSender(nil).Send(context.Background(), testNotification()); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}
