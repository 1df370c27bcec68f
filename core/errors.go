package core

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// ErrNotConnected is returned when an integration has no usable credential
var ErrNotConnected = errors.New("integration not connected")

// ErrAuth is returned when the provider rejects a token refresh and the user must reconnect
var ErrAuth = errors.New("integration authorization failed")

// ReconnectMessage is what end users see for NotConnected and Auth failures
const ReconnectMessage = "The calendar integration is not connected. Please reconnect the integration."

// ValidationError describes a caller mistake (bad interval, missing field, unresolvable event).
// It is never retried and its message is returned verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ProviderError is a non-2xx provider response after the retry budget was spent
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.StatusCode, e.Message)
}

// TransportError wraps network level failures (timeouts, DNS, connection resets)
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFoundError checks if an error is a "not found" error
// This function handles both the new ErrNotFound sentinel error and legacy string-based errors
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return containsNotFound(err.Error())
}

// IsReconnectError reports whether the error means the user has to reconnect the integration
func IsReconnectError(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrAuth)
}

// UserMessage maps an error to the caller-facing text used by the tool layer
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsReconnectError(err) {
		return ReconnectMessage
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return fmt.Sprintf("Calendar provider error: %s", providerErr.Message)
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return "The calendar provider could not be reached. Please try again later."
	}

	return "Calendar operation failed."
}

var notFoundRegex = regexp.MustCompile(`(?i)not found`)

// containsNotFound checks if an error message contains "not found"
func containsNotFound(errMsg string) bool {
	return len(errMsg) > 0 && notFoundRegex.MatchString(errMsg)
}
