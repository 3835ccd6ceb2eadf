package webhooks

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a webhook id is unknown to the organization.
	ErrNotFound = errors.New("webhook not found")
	// ErrDispatcherClosed is returned by Trigger and TestWebhook after Shutdown.
	ErrDispatcherClosed = errors.New("webhook dispatcher is shut down")
)

// ValidationError describes rejected operator input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StatusError is the failure recorded when an endpoint answers outside 2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
