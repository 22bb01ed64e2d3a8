package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeListingUnavailable = "LISTING_UNAVAILABLE"
	ErrCodeNavigation         = "NAVIGATION_FAILED"
	ErrCodeTimeout            = "HARVEST_TIMEOUT"
	ErrCodeBrowserCrash       = "BROWSER_CRASH"
	ErrCodeOutput             = "OUTPUT_FAILED"
	ErrCodeCanceled           = "HARVEST_CANCELED"
	ErrCodeQueueFull          = "QUEUE_FULL"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HarvestError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *HarvestError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// DetailOf converts any error into an ErrorDetail, falling back to
// ErrCodeInternal for errors that carry no code.
func DetailOf(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var he *HarvestError
	if errors.As(err, &he) {
		return he.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
