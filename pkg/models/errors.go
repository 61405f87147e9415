package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced funnel or configuration does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateLimited means the upstream AI provider refused the call with HTTP 429.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrQuotaExceeded means the upstream AI provider refused the call with HTTP 402.
	ErrQuotaExceeded = errors.New("AI usage quota exceeded, please add credits")
	// ErrUpstreamFailure covers every other failure of an external dependency.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrUnauthorized is returned when a request carries no valid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// UpstreamError carries the diagnostics of a failed call to an external service.
// StatusCode is 0 for transport-level failures (timeouts, resets).
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Service
	if msg == "" {
		msg = "upstream"
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s returned status %d", msg, e.StatusCode)
	} else {
		msg += " request failed"
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrUpstreamFailure and the transport cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamFailure}
	}
	return []error{ErrUpstreamFailure, e.Err}
}

// ClassifyUpstream maps refusals of the AI provider to the dedicated
// sentinels: HTTP 429 becomes ErrRateLimited and HTTP 402 ErrQuotaExceeded.
// Every other error is returned unchanged.
func ClassifyUpstream(err error) error {
	var up *UpstreamError
	if !errors.As(err, &up) {
		return err
	}
	switch up.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExceeded
	default:
		return err
	}
}

// ErrorType classifies API errors for clients.
type ErrorType string

const (
	ValidationErrorType      ErrorType = "ValidationError"
	NotFoundErrorType        ErrorType = "NotFoundError"
	AuthenticationErrorType  ErrorType = "AuthenticationError"
	AuthorizationErrorType   ErrorType = "AuthorizationError"
	RateLimitErrorType       ErrorType = "RateLimitError"
	QuotaErrorType           ErrorType = "QuotaError"
	DatabaseErrorType        ErrorType = "DatabaseError"
	ExternalServiceErrorType ErrorType = "ExternalServiceError"
	GeneralErrorType         ErrorType = "GeneralError"
)
