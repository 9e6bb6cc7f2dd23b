package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrInvalidQuery is returned when a query fails validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrThrottled is returned when the shared upstream cooldown is longer
	// than the client is allowed to wait.
	ErrThrottled = errors.New("upstream throttled")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local throttle cooldowns.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents response bodies that are not the expected JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// SearchError represents a failed page fetch with additional context.
type SearchError struct {
	Page       int
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search %s error (page %d, status %d): %s: %v",
			e.ErrorClass, e.Page, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("search %s error (page %d, status %d): %s",
		e.ErrorClass, e.Page, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// ClassOf returns the error class carried by err, or "" when err is not a
// classified fetch error. Context cancellation is never classified.
func ClassOf(err error) ErrorClass {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	var se *SearchError
	if errors.As(err, &se) {
		return se.ErrorClass
	}
	return ""
}

// classifyStatus maps a non-2xx HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx never carry a result page.
		return ErrorClassServer
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx will fail the same way again
		return false
	case ErrorClassDecode:
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
