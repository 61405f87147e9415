package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bargn/bargn/pkg/models"
)

const (
	selectFunnelSnapshotBase = `SELECT
    funnel_id,
    funnel_name,
    COALESCE(completion_rate, 0)::float8 AS completion_rate,
    COALESCE(total_entries, 0) AS total_entries,
    COALESCE(completions, 0) AS completions
FROM funnel_analytics`

	listFunnelSnapshotsQuery = selectFunnelSnapshotBase + `
ORDER BY funnel_name`

	getFunnelSnapshotQuery = selectFunnelSnapshotBase + `
WHERE funnel_id = $1`

	funnelDropOffQuery = `SELECT
    step_number,
    step_name,
    sessions_reached,
    COALESCE(drop_off_rate, 0)::float8 AS drop_off_rate
FROM get_funnel_dropoff($1, $2)
ORDER BY step_number`

	funnelCohortQuery = `SELECT
    cohort_name,
    COALESCE(completion_rate, 0)::float8 AS completion_rate,
    total_entries
FROM get_funnel_cohort_analysis($1, $2, $3)`
)

// ListFunnelSnapshots returns the aggregated state of every funnel.
func (db *DB) ListFunnelSnapshots(ctx context.Context) ([]models.FunnelSnapshot, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var snapshots []models.FunnelSnapshot
	if err := db.db.SelectContext(ctx, &snapshots, listFunnelSnapshotsQuery); err != nil {
		return nil, fmt.Errorf("failed to list funnel analytics: %w", err)
	}
	return snapshots, nil
}

// GetFunnelSnapshot returns the aggregated state of one funnel, or
// models.ErrNotFound.
func (db *DB) GetFunnelSnapshot(ctx context.Context, funnelID string) (*models.FunnelSnapshot, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var snapshot models.FunnelSnapshot
	if err := db.db.GetContext(ctx, &snapshot, getFunnelSnapshotQuery, funnelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("funnel %s: %w", funnelID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get funnel analytics for %s: %w", funnelID, err)
	}
	return &snapshot, nil
}

// GetFunnelDropOff returns the per-step drop-off of a funnel over the last
// daysBack days, ordered by step number.
func (db *DB) GetFunnelDropOff(ctx context.Context, funnelID string, daysBack int) ([]models.DropOffStep, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var steps []models.DropOffStep
	if err := db.db.SelectContext(ctx, &steps, funnelDropOffQuery, funnelID, daysBack); err != nil {
		return nil, fmt.Errorf("failed to get drop-off for funnel %s: %w", funnelID, err)
	}
	return steps, nil
}

// GetFunnelCohorts returns the cohort breakdown of a funnel for one dimension.
func (db *DB) GetFunnelCohorts(ctx context.Context, funnelID string, cohortType models.CohortType, daysBack int) ([]models.CohortBreakdown, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var cohorts []models.CohortBreakdown
	if err := db.db.SelectContext(ctx, &cohorts, funnelCohortQuery, funnelID, string(cohortType), daysBack); err != nil {
		return nil, fmt.Errorf("failed to get %s cohorts for funnel %s: %w", cohortType, funnelID, err)
	}
	return cohorts, nil
}
