package models

import "time"

// APIResponse is the envelope used by management endpoints.
type APIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse is returned by every endpoint on failure.
type ErrorResponse struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	ErrorType ErrorType `json:"error_type,omitempty"`
}

// EvaluateAlertsResponse is the result of an alert evaluation run.
type EvaluateAlertsResponse struct {
	Success         bool         `json:"success"`
	AlertsTriggered int          `json:"alerts_triggered"`
	Alerts          []FiredAlert `json:"alerts"`
}

// AnalyzeFunnelRequest asks for AI recommendations for a funnel.
type AnalyzeFunnelRequest struct {
	FunnelID string `json:"funnel_id"`
}

// AnalyzeFunnelResponse carries the generated recommendations.
type AnalyzeFunnelResponse struct {
	Success         bool           `json:"success"`
	Funnel          FunnelSnapshot `json:"funnel"`
	Recommendations string         `json:"recommendations"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
}

// GenerateImageRequest asks the AI gateway for a blog header image.
type GenerateImageRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=4000"`
	Title  string `json:"title"`
}

// GenerateImageResponse holds the generated image as a data URL or hosted URL.
type GenerateImageResponse struct {
	ImageURL    string    `json:"image_url"`
	GeneratedAt time.Time `json:"generated_at"`
}
