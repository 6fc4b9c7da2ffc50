package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// AuthError is returned for 401 and 403 responses.
type AuthError struct {
	StatusCode int
	Method     string
	Path       string
	RequestID  string
	Body       []byte
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed %d: %s %s (request %s)", e.StatusCode, e.Method, e.Path, e.RequestID)
}

// RateLimitError is returned for 429 responses. RetryAfter is zero when the
// server did not send a usable Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Method     string
	Path       string
	RequestID  string
	Body       []byte
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s %s, retry after %s (request %s)", e.Method, e.Path, e.RetryAfter, e.RequestID)
	}
	return fmt.Sprintf("rate limited: %s %s (request %s)", e.Method, e.Path, e.RequestID)
}

// APIError represents any other non-success response.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	Method     string
	Path       string
	Duration   time.Duration
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s (%s %s, request %s, %s)",
		e.StatusCode, e.Message, e.Method, e.Path, e.RequestID, e.Duration.Round(time.Millisecond))
}

// IsRetryable returns true for server-class failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// NetworkError wraps a failure that produced no HTTP response.
type NetworkError struct {
	Method    string
	Path      string
	RequestID string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s (request %s): %v", e.Method, e.Path, e.RequestID, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError reports input rejected before any request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ShouldRetry reports whether err is worth another attempt: rate limits,
// 5xx responses and network failures are; everything else is not.
func ShouldRetry(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// RetryAfter extracts the server-specified wait from a rate-limit failure.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// parseRetryAfter accepts delta-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// errorMessage pulls a human readable message out of an error body, falling
// back to the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message      string `json:"message"`
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.ErrorMessage != "":
			return payload.ErrorMessage
		case payload.Error != "":
			return payload.Error
		}
	}
	return http.StatusText(status)
}

func retryReason(err error) string {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return "rate_limit"
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network"
	}
	return "server"
}
