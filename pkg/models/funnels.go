package models

import "time"

// FunnelSnapshot is the aggregated conversion state of a funnel as exposed by
// the funnel_analytics view.
type FunnelSnapshot struct {
	FunnelID       string  `db:"funnel_id" json:"funnel_id"`
	FunnelName     string  `db:"funnel_name" json:"funnel_name"`
	CompletionRate float64 `db:"completion_rate" json:"completion_rate"`
	TotalEntries   int64   `db:"total_entries" json:"total_entries"`
	Completions    int64   `db:"completions" json:"completions"`
}

// ComputedCompletionRate derives the completion percentage from the raw
// counts. It is 0 when the funnel has no entries.
func (s FunnelSnapshot) ComputedCompletionRate() float64 {
	if s.TotalEntries <= 0 {
		return 0
	}
	return float64(s.Completions) / float64(s.TotalEntries) * 100
}

// DropOffStep is one step of a funnel with the share of the previous step's
// sessions lost at it.
type DropOffStep struct {
	StepNumber      int     `db:"step_number" json:"step_number"`
	StepName        string  `db:"step_name" json:"step_name"`
	SessionsReached int64   `db:"sessions_reached" json:"sessions_reached"`
	DropOffRate     float64 `db:"drop_off_rate" json:"drop_off_rate"`
}

// CohortType is the dimension funnel entries are grouped by.
type CohortType string

const (
	CohortLanguage CohortType = "language"
	CohortDevice   CohortType = "device"
	CohortReferrer CohortType = "referrer"
)

// CohortTypes lists every cohort dimension in report order.
var CohortTypes = []CohortType{CohortLanguage, CohortDevice, CohortReferrer}

// CohortBreakdown is the conversion of a single cohort within a funnel.
type CohortBreakdown struct {
	CohortName     string  `db:"cohort_name" json:"cohort_name"`
	CompletionRate float64 `db:"completion_rate" json:"completion_rate"`
	TotalEntries   int64   `db:"total_entries" json:"total_entries"`
}

// CohortSummary groups the breakdowns of one dimension.
type CohortSummary struct {
	Type    CohortType        `json:"type"`
	Cohorts []CohortBreakdown `json:"cohorts"`
}

// RecommendationReport is the outcome of an AI funnel analysis.
type RecommendationReport struct {
	Funnel          FunnelSnapshot  `json:"funnel"`
	DropOff         []DropOffStep   `json:"drop_off,omitempty"`
	Cohorts         []CohortSummary `json:"cohorts,omitempty"`
	Recommendations string          `json:"recommendations"`
	GeneratedAt     time.Time       `json:"analyzed_at"`
}
