package herald

import (
	"errors"
	"fmt"
)

// Standard errors returned by the client lifecycle and REST layer.
var (
	// ErrClientClosed is returned by operations attempted after Close.
	ErrClientClosed = errors.New("herald: client is closed")

	// ErrAlreadyOpen is returned by Open when the client is already running.
	ErrAlreadyOpen = errors.New("herald: client is already open")

	// ErrNoToken is returned when an authenticated call is attempted with no
	// bot token configured.
	ErrNoToken = errors.New("herald: no bot token configured")
)

// APIError is a non-success response from the REST API. Status is the HTTP
// status code; Code and Message come from the service's JSON error body and
// are zero-valued when the body carried none.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("herald: api error: status %d", e.Status)
	}
	return fmt.Sprintf("herald: api error: status %d (code %d): %s", e.Status, e.Code, e.Message)
}

// IsAPIError reports whether err is or wraps an *APIError, returning it
// when so.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
