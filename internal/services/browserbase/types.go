// Package browserbase provides a client for the Browserbase sessions API.
// This package centralizes all remote browser provider interactions.
package browserbase

import (
	"fmt"
	"time"
)

const (
	// DefaultBaseURL is the base URL for the Browserbase API.
	DefaultBaseURL = "https://api.browserbase.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5
)

// APIError represents an error from the Browserbase API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserbase API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// createSessionRequest is the session creation wire body.
type createSessionRequest struct {
	ProjectID string `json:"projectId"`
}
