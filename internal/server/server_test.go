package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bargn/bargn/internal/alerts"
	"github.com/bargn/bargn/internal/auth"
	"github.com/bargn/bargn/internal/config"
	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

const (
	testFunnelID = "5f1c2b9e-0d7a-4c3e-9a51-2f6f3c0b8e11"
	adminToken   = "admin-token"
	viewerToken  = "viewer-token"
)

type fakeStore struct {
	snapshots []models.FunnelSnapshot
	configs   map[string]*models.AlertConfiguration
	pingErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: []models.FunnelSnapshot{{FunnelID: testFunnelID, FunnelName: "Checkout", CompletionRate: 3.2, TotalEntries: 1000, Completions: 32}},
		configs:   map[string]*models.AlertConfiguration{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListFunnelSnapshots(context.Context) ([]models.FunnelSnapshot, error) {
	return f.snapshots, nil
}

func (f *fakeStore) GetFunnelSnapshot(_ context.Context, id string) (*models.FunnelSnapshot, error) {
	for i := range f.snapshots {
		if f.snapshots[i].FunnelID == id {
			return &f.snapshots[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) ListAlertConfigs(context.Context, string) ([]models.AlertConfiguration, error) {
	out := make([]models.AlertConfiguration, 0, len(f.configs))
	for _, c := range f.configs {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) GetAlertConfig(_ context.Context, id string) (*models.AlertConfiguration, error) {
	c, ok := f.configs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) CreateAlertConfig(_ context.Context, cfg *models.AlertConfiguration) error {
	cfg.ID = uuid.NewString()
	copied := *cfg
	f.configs[cfg.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateAlertConfig(_ context.Context, cfg *models.AlertConfiguration) error {
	copied := *cfg
	f.configs[cfg.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteAlertConfig(_ context.Context, id string) error {
	if _, ok := f.configs[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.configs, id)
	return nil
}

func (f *fakeStore) ListAlertEvents(context.Context, string, int) ([]models.AlertEvent, error) {
	return nil, nil
}

type fakeEvaluator struct {
	result *alerts.EvaluationResult
	err    error
}

func (f *fakeEvaluator) EvaluateAll(context.Context) (*alerts.EvaluationResult, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	report *models.RecommendationReport
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, funnelID string) (*models.RecommendationReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if _, err := uuid.Parse(funnelID); err != nil {
		return nil, models.ErrInvalidArgument
	}
	return f.report, nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	switch token {
	case adminToken:
		return &auth.Principal{Subject: "ops", Roles: []string{"admin"}}, nil
	case viewerToken:
		return &auth.Principal{Subject: "viewer", Roles: []string{"viewer"}}, nil
	default:
		return nil, models.ErrUnauthorized
	}
}

type fakeImages struct{}

func (fakeImages) GenerateImage(context.Context, string) (string, error) {
	return "https://cdn.example.com/header.png", nil
}

type testEnv struct {
	server    *Server
	store     *fakeStore
	evaluator *fakeEvaluator
	generator *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newFakeStore(),
		evaluator: &fakeEvaluator{result: &alerts.EvaluationResult{}},
		generator: &fakeGenerator{},
	}
	env.server = New(ServerOptions{
		Config:    config.Default(),
		Store:     env.store,
		Evaluator: env.evaluator,
		Generator: env.generator,
		Images:    fakeImages{},
		Verifier:  fakeVerifier{},
		Logger:    logger.Discard(),
		Version:   "test",
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/funnels/analyze", nil)
	req.Header.Set("Origin", "https://bargn.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := env.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSOnResponses(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/funnels/alerts/check", nil)
	req.Header.Set("Origin", "https://bargn.example")
	resp, err := env.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEvaluateAlerts(t *testing.T) {
	env := newTestEnv(t)
	env.evaluator.result = &alerts.EvaluationResult{
		Fired: []models.FiredAlert{{
			ConfigID:    "cfg-1",
			FunnelID:    testFunnelID,
			FunnelName:  "Checkout",
			AlertType:   models.AlertTypeConversionRate,
			Comparison:  models.ComparisonBelow,
			Threshold:   5,
			MetricValue: 3.2,
			Message:     "Conversion rate for Checkout is 3.2% (below threshold of 5%)",
		}},
		Failures:  []alerts.ConfigFailure{{ConfigID: "cfg-2", Err: errors.New("timeout")}},
		Evaluated: 2,
	}

	resp, body := env.do(t, http.MethodPost, "/api/v1/funnels/alerts/check", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["alerts_triggered"])
	list := body["alerts"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Checkout", list[0].(map[string]any)["funnel_name"])
}

func TestEvaluateAlerts_NoneFired(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/funnels/alerts/check", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["alerts_triggered"])
	assert.Equal(t, []any{}, body["alerts"])
}

func TestEvaluateAlerts_FatalError(t *testing.T) {
	env := newTestEnv(t)
	env.evaluator.err = errors.New("failed to list alert configurations: connection refused")

	resp, body := env.do(t, http.MethodPost, "/api/v1/funnels/alerts/check", "", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "connection refused")
}

func TestAnalyzeFunnel(t *testing.T) {
	env := newTestEnv(t)
	analyzed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.generator.report = &models.RecommendationReport{
		Funnel:          env.store.snapshots[0],
		Recommendations: "1. Issue: ...",
		GeneratedAt:     analyzed,
	}

	resp, body := env.do(t, http.MethodPost, "/api/v1/funnels/analyze", `{"funnel_id":"`+testFunnelID+`"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1. Issue: ...", body["recommendations"])
	assert.Equal(t, "2026-03-01T12:00:00Z", body["analyzed_at"])
	assert.Equal(t, "Checkout", body["funnel"].(map[string]any)["funnel_name"])
}

func TestAnalyzeFunnel_WithoutContentType(t *testing.T) {
	env := newTestEnv(t)
	env.generator.report = &models.RecommendationReport{
		Funnel:          models.FunnelSnapshot{FunnelID: testFunnelID, FunnelName: "Checkout"},
		Recommendations: "Shorten the payment form.",
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/funnels/analyze", strings.NewReader(`{"funnel_id":"`+testFunnelID+`"}`))
	resp, err := env.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.generator.calls)
}

func TestAnalyzeFunnel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		calls  int
	}{
		{"missing funnel id", `{}`, nil, http.StatusBadRequest, 0},
		{"malformed body", `{`, nil, http.StatusBadRequest, 0},
		{"malformed funnel id", `{"funnel_id":"abc"}`, nil, http.StatusBadRequest, 1},
		{"unknown funnel", `{"funnel_id":"` + testFunnelID + `"}`, models.ErrNotFound, http.StatusNotFound, 1},
		{"rate limited", `{"funnel_id":"` + testFunnelID + `"}`, models.ErrRateLimited, http.StatusTooManyRequests, 1},
		{"quota", `{"funnel_id":"` + testFunnelID + `"}`, models.ErrQuotaExceeded, http.StatusPaymentRequired, 1},
		{"upstream", `{"funnel_id":"` + testFunnelID + `"}`, &models.UpstreamError{StatusCode: 500, Body: "boom"}, http.StatusInternalServerError, 1},
		{"store failure", `{"funnel_id":"` + testFunnelID + `"}`, errors.New("connection reset"), http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.generator.err = tt.err

			resp, body := env.do(t, http.MethodPost, "/api/v1/funnels/analyze", tt.body, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, tt.calls, env.generator.calls)
		})
	}
}

func TestListFunnels(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/funnels", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
}

func TestAdminAuthorization(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/admin/alert-configs", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/alert-configs", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/alert-configs", "", viewerToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/alert-configs", "", adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_NoVerifierConfigured(t *testing.T) {
	srv := New(ServerOptions{Store: newFakeStore(), Evaluator: &fakeEvaluator{}, Logger: logger.Discard()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/alert-configs", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAlertConfigLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/alert-configs",
		`{"funnel_id":"`+testFunnelID+`","alert_type":"conversion_rate","threshold":5,"comparison":"below"}`, adminToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, true, created["is_enabled"])

	resp, body = env.do(t, http.MethodPut, "/api/v1/admin/alert-configs/"+id, `{"threshold":7.5,"is_enabled":false}`, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := body["data"].(map[string]any)
	assert.EqualValues(t, 7.5, updated["threshold"])
	assert.Equal(t, false, updated["is_enabled"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/alert-configs/"+id+"/events", "", adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["data"])

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/admin/alert-configs/"+id, "", adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/alert-configs/"+id, "", adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(models.NotFoundErrorType), body["error_type"])
}

func TestCreateAlertConfig_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/alert-configs",
		`{"funnel_id":"`+testFunnelID+`","alert_type":"bounce","threshold":5,"comparison":"below"}`, adminToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "alert_type")
}

func TestListAlertEvents_BadLimit(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/admin/alert-configs/"+uuid.NewString()+"/events?limit=-3", "", adminToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateBlogImage(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/blog-images", `{"prompt":"a cart full of coupons"}`, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://cdn.example.com/header.png", body["data"].(map[string]any)["image_url"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/blog-images", `{"prompt":""}`, adminToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMeta(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.store.pingErr = errors.New("down")
	resp, _ = env.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/meta", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	meta := body["data"].(map[string]any)
	assert.Equal(t, "test", meta["version"])
	assert.EqualValues(t, 7, meta["alert_drop_off_window_days"])
	assert.EqualValues(t, 30, meta["recommendation_window_days"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/funnels/alerts/check", "", "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	resp, err := env.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "bargn_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}
