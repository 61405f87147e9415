// Package recommend produces AI-written improvement plans for a funnel.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bargn/bargn/internal/ai"
	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

const (
	defaultWindowDays = 30
	defaultTimeout    = 60 * time.Second
)

// Store is the funnel analytics surface read by the generator.
type Store interface {
	GetFunnelSnapshot(ctx context.Context, funnelID string) (*models.FunnelSnapshot, error)
	GetFunnelDropOff(ctx context.Context, funnelID string, daysBack int) ([]models.DropOffStep, error)
	GetFunnelCohorts(ctx context.Context, funnelID string, cohortType models.CohortType, daysBack int) ([]models.CohortBreakdown, error)
}

// TextCompletionProvider turns a prompt into model-written text.
type TextCompletionProvider interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (string, error)
}

// Options encapsulates the dependencies of a Generator.
type Options struct {
	Store      Store
	Completer  TextCompletionProvider
	Logger     *slog.Logger
	WindowDays int
	Timeout    time.Duration
	Now        func() time.Time
}

// Generator builds a RecommendationReport for a single funnel.
type Generator struct {
	store      Store
	completer  TextCompletionProvider
	log        *slog.Logger
	windowDays int
	timeout    time.Duration
	now        func() time.Time
}

func NewGenerator(opts Options) *Generator {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	g := &Generator{
		store:      opts.Store,
		completer:  opts.Completer,
		log:        log.With("component", "recommendations"),
		windowDays: opts.WindowDays,
		timeout:    opts.Timeout,
		now:        opts.Now,
	}
	if g.windowDays <= 0 {
		g.windowDays = defaultWindowDays
	}
	if g.timeout <= 0 {
		g.timeout = defaultTimeout
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Generate validates funnelID, gathers the funnel's metrics and asks the
// completion provider for recommendations. Provider refusals surface as
// models.ErrRateLimited or models.ErrQuotaExceeded; nothing is retried.
func (g *Generator) Generate(ctx context.Context, funnelID string) (*models.RecommendationReport, error) {
	id, err := uuid.Parse(funnelID)
	if err != nil {
		return nil, fmt.Errorf("%w: funnel_id must be a valid UUID", models.ErrInvalidArgument)
	}
	funnelID = id.String()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	snapshot, err := g.store.GetFunnelSnapshot(ctx, funnelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch funnel analytics: %w", err)
	}

	steps, err := g.store.GetFunnelDropOff(ctx, funnelID, g.windowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch funnel drop-off: %w", err)
	}

	cohorts := g.fetchCohorts(ctx, funnelID)

	text, err := g.completer.Complete(ctx, ai.CompletionRequest{
		System: systemPrompt,
		Prompt: buildPrompt(*snapshot, steps, cohorts, g.windowDays),
	})
	if err != nil {
		classified := models.ClassifyUpstream(err)
		g.log.Error("recommendation request failed", "funnel_id", funnelID, "error", err)
		if classified != err {
			return nil, classified
		}
		return nil, fmt.Errorf("failed to generate recommendations: %w", err)
	}

	return &models.RecommendationReport{
		Funnel:          *snapshot,
		DropOff:         steps,
		Cohorts:         cohorts,
		Recommendations: text,
		GeneratedAt:     g.now().UTC(),
	}, nil
}

// fetchCohorts loads every cohort dimension concurrently. A dimension that
// fails is left out of the result.
func (g *Generator) fetchCohorts(ctx context.Context, funnelID string) []models.CohortSummary {
	results := make([][]models.CohortBreakdown, len(models.CohortTypes))
	ok := make([]bool, len(models.CohortTypes))

	var eg errgroup.Group
	for i, cohortType := range models.CohortTypes {
		eg.Go(func() error {
			rows, err := g.store.GetFunnelCohorts(ctx, funnelID, cohortType, g.windowDays)
			if err != nil {
				g.log.Warn("cohort breakdown unavailable, omitting", "funnel_id", funnelID, "cohort_type", cohortType, "error", err)
				return nil
			}
			results[i] = rows
			ok[i] = true
			return nil
		})
	}
	_ = eg.Wait()

	summaries := make([]models.CohortSummary, 0, len(models.CohortTypes))
	for i, cohortType := range models.CohortTypes {
		if !ok[i] {
			continue
		}
		summaries = append(summaries, models.CohortSummary{Type: cohortType, Cohorts: results[i]})
	}
	return summaries
}
