// Package drive implements the RemoteDriveCapability the uploader needs
// against the Google Drive v3 REST API: folder resolution, file creation,
// and content upload, behind an HTTP client with retry/backoff and OAuth2
// token refresh.
package drive

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification. Use errors.Is to
// check which one a *APIError wraps.
var (
	ErrBadRequest    = errors.New("drive: bad request")
	ErrUnauthorized  = errors.New("drive: unauthorized")
	ErrForbidden     = errors.New("drive: forbidden")
	ErrNotFound      = errors.New("drive: not found")
	ErrThrottled     = errors.New("drive: throttled")
	ErrServerError   = errors.New("drive: server error")
	ErrNotLoggedIn   = errors.New("drive: not logged in")
	ErrRefreshFailed = errors.New("drive: token refresh failed")
)

// APIError wraps a sentinel error with the HTTP status code and the raw
// response body (Message) for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error. Returns nil
// for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
