package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bargn/bargn/pkg/models"
)

type fakeStore struct {
	mu         sync.Mutex
	configs    []models.AlertConfiguration
	snapshots  []models.FunnelSnapshot
	dropOff    map[string][]models.DropOffStep
	dropOffErr map[string]error
	configErr  error
	snapErr    error
	delay      time.Duration

	dropOffCalls []int
	inFlight     int32
	maxInFlight  int32
}

func (f *fakeStore) ListEnabledAlertConfigs(context.Context) ([]models.AlertConfiguration, error) {
	return f.configs, f.configErr
}

func (f *fakeStore) ListFunnelSnapshots(context.Context) ([]models.FunnelSnapshot, error) {
	return f.snapshots, f.snapErr
}

func (f *fakeStore) GetFunnelDropOff(ctx context.Context, funnelID string, daysBack int) ([]models.DropOffStep, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&f.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&f.maxInFlight, cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.dropOffCalls = append(f.dropOffCalls, daysBack)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.dropOffErr[funnelID]; err != nil {
		return nil, err
	}
	return f.dropOff[funnelID], nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	alerts []models.FiredAlert
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, alert models.FiredAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

func conversionConfig(id, funnelID string, threshold float64, cmp models.Comparison) models.AlertConfiguration {
	return models.AlertConfiguration{
		ID:         id,
		FunnelID:   funnelID,
		AlertType:  models.AlertTypeConversionRate,
		Threshold:  threshold,
		Comparison: cmp,
		Enabled:    true,
	}
}

func dropOffConfig(id, funnelID string, threshold float64, cmp models.Comparison) models.AlertConfiguration {
	cfg := conversionConfig(id, funnelID, threshold, cmp)
	cfg.AlertType = models.AlertTypeDropOffRate
	return cfg
}

func newTestEvaluator(store Store, rec AlertRecorder) *Evaluator {
	return NewEvaluator(EvaluatorOptions{
		Store:          store,
		Recorder:       rec,
		MaxConcurrency: 2,
		Timeout:        time.Second,
		Now:            func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func TestCompareThreshold(t *testing.T) {
	tests := []struct {
		name       string
		value      float64
		threshold  float64
		comparison models.Comparison
		want       bool
	}{
		{"below fires", 3.2, 5, models.ComparisonBelow, true},
		{"below equal does not fire", 5, 5, models.ComparisonBelow, false},
		{"below greater does not fire", 7, 5, models.ComparisonBelow, false},
		{"above fires", 61, 60, models.ComparisonAbove, true},
		{"above equal does not fire", 60, 60, models.ComparisonAbove, false},
		{"above lower does not fire", 10, 60, models.ComparisonAbove, false},
		{"unknown comparison", 1, 5, models.Comparison("equal"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareThreshold(tt.value, tt.threshold, tt.comparison); got != tt.want {
				t.Errorf("compareThreshold(%v, %v, %q) = %v, want %v", tt.value, tt.threshold, tt.comparison, got, tt.want)
			}
		})
	}
}

func TestEvaluateAll_ConversionRateScenario(t *testing.T) {
	tests := []struct {
		rate      float64
		wantFired bool
	}{
		{3.2, true},
		{5.0, false},
		{7.0, false},
	}
	for _, tt := range tests {
		store := &fakeStore{
			configs:   []models.AlertConfiguration{conversionConfig("cfg-1", "f-1", 5, models.ComparisonBelow)},
			snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Checkout", CompletionRate: tt.rate}},
		}
		rec := &fakeRecorder{}
		result, err := newTestEvaluator(store, rec).EvaluateAll(context.Background())
		if err != nil {
			t.Fatalf("rate %v: EvaluateAll() error = %v", tt.rate, err)
		}
		if got := len(result.Fired) == 1; got != tt.wantFired {
			t.Fatalf("rate %v: fired = %v, want %v", tt.rate, got, tt.wantFired)
		}
		if !tt.wantFired {
			if len(rec.alerts) != 0 {
				t.Errorf("rate %v: recorder called %d times, want 0", tt.rate, len(rec.alerts))
			}
			continue
		}
		alert := result.Fired[0]
		if !strings.Contains(alert.Message, "3.2") || !strings.Contains(alert.Message, "5") {
			t.Errorf("message %q should mention the value and threshold", alert.Message)
		}
		if alert.Message != "Conversion rate for Checkout is 3.2% (below threshold of 5%)" {
			t.Errorf("message = %q", alert.Message)
		}
		if len(rec.alerts) != 1 || rec.alerts[0].ConfigID != "cfg-1" {
			t.Errorf("recorder got %+v, want one alert for cfg-1", rec.alerts)
		}
	}
}

func TestEvaluateAll_DisabledConfigNeverFires(t *testing.T) {
	disabled := conversionConfig("cfg-off", "f-1", 50, models.ComparisonBelow)
	disabled.Enabled = false
	store := &fakeStore{
		configs:   []models.AlertConfiguration{disabled},
		snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Checkout", CompletionRate: 0}},
	}
	rec := &fakeRecorder{}

	result, err := newTestEvaluator(store, rec).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if len(result.Fired) != 0 || len(rec.alerts) != 0 {
		t.Errorf("disabled config fired: %+v", result.Fired)
	}
	if result.Evaluated != 0 {
		t.Errorf("Evaluated = %d, want 0", result.Evaluated)
	}
}

func TestEvaluateAll_DropOffMean(t *testing.T) {
	store := &fakeStore{
		configs:   []models.AlertConfiguration{dropOffConfig("cfg-1", "f-1", 25, models.ComparisonAbove)},
		snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Signup"}},
		dropOff: map[string][]models.DropOffStep{
			"f-1": {
				{StepNumber: 1, SessionsReached: 1000, DropOffRate: 0},
				{StepNumber: 2, SessionsReached: 400, DropOffRate: 60},
				{StepNumber: 3, SessionsReached: 280, DropOffRate: 30},
			},
		},
	}

	result, err := newTestEvaluator(store, nil).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if len(result.Fired) != 1 {
		t.Fatalf("fired = %d, want 1", len(result.Fired))
	}
	if result.Fired[0].MetricValue != 30 {
		t.Errorf("MetricValue = %v, want unweighted mean 30", result.Fired[0].MetricValue)
	}
	if len(store.dropOffCalls) != 1 || store.dropOffCalls[0] != 7 {
		t.Errorf("drop-off window = %v, want [7]", store.dropOffCalls)
	}
}

func TestEvaluateAll_EmptyDropOffWindowSkipsConfig(t *testing.T) {
	store := &fakeStore{
		configs: []models.AlertConfiguration{
			dropOffConfig("cfg-empty", "f-1", 10, models.ComparisonAbove),
			conversionConfig("cfg-conv", "f-2", 10, models.ComparisonBelow),
		},
		snapshots: []models.FunnelSnapshot{
			{FunnelID: "f-1", FunnelName: "Signup"},
			{FunnelID: "f-2", FunnelName: "Checkout", CompletionRate: 4},
		},
		dropOff: map[string][]models.DropOffStep{},
	}

	result, err := newTestEvaluator(store, nil).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if len(result.Failures) != 0 {
		t.Errorf("Failures = %v, want none", result.Failures)
	}
	if len(result.Fired) != 1 || result.Fired[0].ConfigID != "cfg-conv" {
		t.Errorf("Fired = %+v, want only cfg-conv", result.Fired)
	}
}

func TestEvaluateAll_PartialFailureIsolated(t *testing.T) {
	boom := errors.New("statement timeout")
	store := &fakeStore{
		configs: []models.AlertConfiguration{
			dropOffConfig("cfg-bad", "f-1", 10, models.ComparisonAbove),
			conversionConfig("cfg-good", "f-2", 10, models.ComparisonBelow),
		},
		snapshots: []models.FunnelSnapshot{
			{FunnelID: "f-1", FunnelName: "Signup"},
			{FunnelID: "f-2", FunnelName: "Checkout", CompletionRate: 4},
		},
		dropOffErr: map[string]error{"f-1": boom},
	}

	result, err := newTestEvaluator(store, nil).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v, partial failures must not be fatal", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].ConfigID != "cfg-bad" {
		t.Fatalf("Failures = %+v, want cfg-bad", result.Failures)
	}
	if !errors.Is(result.Failures[0], boom) {
		t.Errorf("failure should wrap the store error")
	}
	if len(result.Fired) != 1 || result.Fired[0].ConfigID != "cfg-good" {
		t.Errorf("Fired = %+v, want cfg-good", result.Fired)
	}
}

func TestEvaluateAll_MissingSnapshotSkipped(t *testing.T) {
	store := &fakeStore{
		configs: []models.AlertConfiguration{conversionConfig("cfg-1", "deleted-funnel", 50, models.ComparisonBelow)},
	}

	result, err := newTestEvaluator(store, nil).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if len(result.Fired) != 0 || len(result.Failures) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestEvaluateAll_FatalErrors(t *testing.T) {
	t.Run("config list", func(t *testing.T) {
		store := &fakeStore{configErr: errors.New("connection refused")}
		if _, err := newTestEvaluator(store, nil).EvaluateAll(context.Background()); err == nil {
			t.Error("EvaluateAll() should fail when configs cannot be loaded")
		}
	})
	t.Run("snapshot list", func(t *testing.T) {
		store := &fakeStore{
			configs: []models.AlertConfiguration{conversionConfig("cfg-1", "f-1", 5, models.ComparisonBelow)},
			snapErr: errors.New("relation does not exist"),
		}
		if _, err := newTestEvaluator(store, nil).EvaluateAll(context.Background()); err == nil {
			t.Error("EvaluateAll() should fail when snapshots cannot be loaded")
		}
	})
}

func TestEvaluateAll_RepeatedRunsRecordDuplicates(t *testing.T) {
	store := &fakeStore{
		configs:   []models.AlertConfiguration{conversionConfig("cfg-1", "f-1", 5, models.ComparisonBelow)},
		snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Checkout", CompletionRate: 1}},
	}
	rec := &fakeRecorder{}
	ev := newTestEvaluator(store, rec)

	for i := 0; i < 2; i++ {
		if _, err := ev.EvaluateAll(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(rec.alerts) != 2 {
		t.Errorf("recorded %d alerts, want 2 independent records", len(rec.alerts))
	}
}

func TestEvaluateAll_RecordFailureStillReturnsAlert(t *testing.T) {
	store := &fakeStore{
		configs:   []models.AlertConfiguration{conversionConfig("cfg-1", "f-1", 5, models.ComparisonBelow)},
		snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Checkout", CompletionRate: 1}},
	}
	rec := &fakeRecorder{err: errors.New("insert failed")}

	result, err := newTestEvaluator(store, rec).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if len(result.Fired) != 1 {
		t.Errorf("fired = %d, want 1", len(result.Fired))
	}
}

func TestEvaluateAll_BoundedConcurrencyKeepsOrder(t *testing.T) {
	store := &fakeStore{
		dropOff: map[string][]models.DropOffStep{},
		delay:   20 * time.Millisecond,
	}
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		store.configs = append(store.configs, dropOffConfig("cfg-"+id, "f-"+id, 10, models.ComparisonAbove))
		store.snapshots = append(store.snapshots, models.FunnelSnapshot{FunnelID: "f-" + id, FunnelName: id})
		store.dropOff["f-"+id] = []models.DropOffStep{{StepNumber: 1, DropOffRate: float64(20 + i)}}
	}

	result, err := newTestEvaluator(store, nil).EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if got := atomic.LoadInt32(&store.maxInFlight); got > 2 {
		t.Errorf("max concurrent drop-off queries = %d, want <= 2", got)
	}
	if len(result.Fired) != 6 {
		t.Fatalf("fired = %d, want 6", len(result.Fired))
	}
	for i, alert := range result.Fired {
		if alert.ConfigID != store.configs[i].ID {
			t.Errorf("Fired[%d] = %s, want %s", i, alert.ConfigID, store.configs[i].ID)
		}
	}
}

func TestEvaluateAll_PerConfigTimeout(t *testing.T) {
	store := &fakeStore{
		configs:   []models.AlertConfiguration{dropOffConfig("cfg-slow", "f-1", 10, models.ComparisonAbove)},
		snapshots: []models.FunnelSnapshot{{FunnelID: "f-1", FunnelName: "Slow"}},
		delay:     time.Second,
	}
	ev := NewEvaluator(EvaluatorOptions{Store: store, Timeout: 20 * time.Millisecond})

	start := time.Now()
	result, err := ev.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("evaluation did not honour the per-config timeout")
	}
	if len(result.Failures) != 1 || !errors.Is(result.Failures[0], context.DeadlineExceeded) {
		t.Errorf("Failures = %+v, want one deadline failure", result.Failures)
	}
}
