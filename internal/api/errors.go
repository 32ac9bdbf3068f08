package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// AuthError is returned for HTTP 401: the stored token is missing,
// expired or revoked and the user has to sign in again.
type AuthError struct {
	Method  string
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication required (401) on %s %s", e.Method, e.Path)
	}
	return fmt.Sprintf("authentication required (401) on %s %s: %s", e.Method, e.Path, e.Message)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string

	// RetryAfter is the server's requested wait for 429 responses. The
	// client never retries on its own.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// IsUnauthorized reports whether err carries an AuthError.
func IsUnauthorized(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// errorResponse is the backend's error body.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (r errorResponse) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

// retryAfter parses the Retry-After header (seconds or HTTP date).
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
