// Package alerts evaluates funnel alert configurations and records the alerts
// that fire.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bargn/bargn/internal/metrics"
	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

const (
	defaultDropOffWindowDays = 7
	defaultMaxConcurrency    = 4
	defaultEvaluationTimeout = 15 * time.Second
)

// Store is the read side of the funnel store used during evaluation.
type Store interface {
	ListEnabledAlertConfigs(ctx context.Context) ([]models.AlertConfiguration, error)
	ListFunnelSnapshots(ctx context.Context) ([]models.FunnelSnapshot, error)
	GetFunnelDropOff(ctx context.Context, funnelID string, daysBack int) ([]models.DropOffStep, error)
}

// AlertRecorder persists and dispatches a fired alert.
type AlertRecorder interface {
	Record(ctx context.Context, alert models.FiredAlert) error
}

// EvaluatorOptions encapsulates the dependencies of an Evaluator.
type EvaluatorOptions struct {
	Store    Store
	Recorder AlertRecorder
	Logger   *slog.Logger

	// MaxConcurrency caps the number of configs evaluated at once.
	MaxConcurrency int
	// Timeout bounds the store queries made for a single config.
	Timeout           time.Duration
	DropOffWindowDays int
	Now               func() time.Time
}

// ConfigFailure describes a config that could not be evaluated. It never
// aborts the run.
type ConfigFailure struct {
	ConfigID string `json:"alert_config_id"`
	FunnelID string `json:"funnel_id"`
	Err      error  `json:"-"`
}

func (f ConfigFailure) Error() string {
	return fmt.Sprintf("alert config %s: %v", f.ConfigID, f.Err)
}

func (f ConfigFailure) Unwrap() error { return f.Err }

// EvaluationResult is the outcome of one EvaluateAll run.
type EvaluationResult struct {
	Fired     []models.FiredAlert
	Failures  []ConfigFailure
	Evaluated int
}

// Evaluator compares every enabled alert configuration against the current
// funnel metrics.
type Evaluator struct {
	store             Store
	recorder          AlertRecorder
	log               *slog.Logger
	maxConcurrency    int
	timeout           time.Duration
	dropOffWindowDays int
	now               func() time.Time
}

// NewEvaluator constructs an Evaluator. A nil Recorder evaluates without
// persisting anything.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	e := &Evaluator{
		store:             opts.Store,
		recorder:          opts.Recorder,
		log:               log.With("component", "alert_evaluator"),
		maxConcurrency:    opts.MaxConcurrency,
		timeout:           opts.Timeout,
		dropOffWindowDays: opts.DropOffWindowDays,
		now:               opts.Now,
	}
	if e.maxConcurrency <= 0 {
		e.maxConcurrency = defaultMaxConcurrency
	}
	if e.timeout <= 0 {
		e.timeout = defaultEvaluationTimeout
	}
	if e.dropOffWindowDays <= 0 {
		e.dropOffWindowDays = defaultDropOffWindowDays
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// EvaluateAll evaluates every enabled configuration. Only a failure to load
// the configuration list or the snapshot list is returned as an error; per
// config failures are collected in the result. Fired alerts keep the order of
// the configuration list.
func (e *Evaluator) EvaluateAll(ctx context.Context) (result *EvaluationResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEvaluation(start, err != nil) }()

	configs, err := e.store.ListEnabledAlertConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alert configurations: %w", err)
	}
	result = &EvaluationResult{Fired: []models.FiredAlert{}}
	if len(configs) == 0 {
		e.log.Debug("no enabled alert configurations")
		return result, nil
	}

	snapshots, err := e.store.ListFunnelSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch funnel analytics: %w", err)
	}
	byFunnel := make(map[string]models.FunnelSnapshot, len(snapshots))
	for _, s := range snapshots {
		byFunnel[s.FunnelID] = s
	}

	fired := make([]*models.FiredAlert, len(configs))
	failures := make([]error, len(configs))

	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)
	for i, cfg := range configs {
		// Disabled rows are never evaluated, whatever the store returned.
		if !cfg.Enabled {
			continue
		}
		snapshot, ok := byFunnel[cfg.FunnelID]
		if !ok {
			e.log.Warn("no analytics for funnel, skipping alert config", "alert_config_id", cfg.ID, "funnel_id", cfg.FunnelID)
			continue
		}
		result.Evaluated++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			alert, err := e.evaluateConfig(ctx, cfg, snapshot)
			if err != nil {
				failures[i] = err
				return nil
			}
			if alert == nil {
				return nil
			}
			fired[i] = alert
			metrics.IncAlertFired(string(alert.AlertType))
			if e.recorder != nil {
				if err := e.recorder.Record(ctx, *alert); err != nil {
					e.log.Error("failed to record fired alert", "alert_config_id", cfg.ID, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, cfg := range configs {
		if failures[i] != nil {
			metrics.IncPartialFailure()
			e.log.Warn("alert config evaluation failed", "alert_config_id", cfg.ID, "funnel_id", cfg.FunnelID, "error", failures[i])
			result.Failures = append(result.Failures, ConfigFailure{ConfigID: cfg.ID, FunnelID: cfg.FunnelID, Err: failures[i]})
		}
		if fired[i] != nil {
			result.Fired = append(result.Fired, *fired[i])
		}
	}

	e.log.Info("alert evaluation finished",
		"configs", len(configs),
		"evaluated", result.Evaluated,
		"fired", len(result.Fired),
		"failed", len(result.Failures),
		"duration", time.Since(start),
	)
	return result, nil
}

// evaluateConfig returns the fired alert for cfg, or nil when the comparison
// does not match or there is no data to compare.
func (e *Evaluator) evaluateConfig(ctx context.Context, cfg models.AlertConfiguration, snapshot models.FunnelSnapshot) (*models.FiredAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var value float64
	switch cfg.AlertType {
	case models.AlertTypeConversionRate:
		value = snapshot.CompletionRate
	case models.AlertTypeDropOffRate:
		steps, err := e.store.GetFunnelDropOff(ctx, cfg.FunnelID, e.dropOffWindowDays)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("drop-off query timed out after %s: %w", e.timeout, err)
			}
			return nil, err
		}
		if len(steps) == 0 {
			e.log.Debug("no drop-off data in window, skipping", "alert_config_id", cfg.ID, "funnel_id", cfg.FunnelID)
			return nil, nil
		}
		value = meanDropOff(steps)
	default:
		return nil, fmt.Errorf("unsupported alert type %q", cfg.AlertType)
	}

	if !compareThreshold(value, cfg.Threshold, cfg.Comparison) {
		return nil, nil
	}

	return &models.FiredAlert{
		ConfigID:          cfg.ID,
		FunnelID:          cfg.FunnelID,
		FunnelName:        snapshot.FunnelName,
		AlertType:         cfg.AlertType,
		Comparison:        cfg.Comparison,
		Threshold:         cfg.Threshold,
		MetricValue:       value,
		Message:           formatMessage(cfg, snapshot.FunnelName, value),
		NotificationEmail: cfg.NotificationEmail,
		TriggeredAt:       e.now().UTC(),
	}, nil
}

// meanDropOff is the unweighted mean of the per-step drop-off rates.
func meanDropOff(steps []models.DropOffStep) float64 {
	var sum float64
	for _, s := range steps {
		sum += s.DropOffRate
	}
	return sum / float64(len(steps))
}

// compareThreshold is strict: a value equal to the threshold never fires.
func compareThreshold(value, threshold float64, comparison models.Comparison) bool {
	switch comparison {
	case models.ComparisonBelow:
		return value < threshold
	case models.ComparisonAbove:
		return value > threshold
	default:
		return false
	}
}

func formatMessage(cfg models.AlertConfiguration, funnelName string, value float64) string {
	return fmt.Sprintf("%s for %s is %.1f%% (%s threshold of %g%%)",
		cfg.AlertType.Label(), funnelName, value, cfg.Comparison, cfg.Threshold)
}
