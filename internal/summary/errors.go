package summary

import (
	"errors"
	"fmt"
)

// NoSummaryText is used as the summary when the provider returns an empty
// completion.
const NoSummaryText = "No summary generated"

var (
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("summary: unknown provider")
)

// APIError is a failed provider call. Its message is what the popup shows
// the user.
type APIError struct {
	// Status is the HTTP status of the failed response, zero if none
	// was received.
	Status int

	// Message is the provider-supplied error message, if any.
	Message string

	// Err is the underlying SDK error.
	Err error
}

// Error returns the provider message, falling back to the status code.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("API Error: %d", e.Status)
}

// Unwrap returns the underlying SDK error.
func (e *APIError) Unwrap() error {
	return e.Err
}
