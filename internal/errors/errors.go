package errors

import (
	"errors"
	"fmt"
)

// SuggestError is the structured error type for amansuggest.
type SuggestError struct {
	// Code is the unique error code (e.g., "ERR_102_CRON_INVALID").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SuggestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SuggestError) Unwrap() error {
	return e.Cause
}

// Is matches another SuggestError by code, so errors.Is works against
// sentinel values built with New.
func (e *SuggestError) Is(target error) bool {
	if t, ok := target.(*SuggestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SuggestError) WithDetail(key, value string) *SuggestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SuggestError) WithSuggestion(suggestion string) *SuggestError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SuggestError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SuggestError {
	return &SuggestError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SuggestError from an existing error.
func Wrap(code string, err error) *SuggestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SuggestError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// CronError reports a rebuild schedule that failed to parse.
func CronError(expr string, cause error) *SuggestError {
	return New(ErrCodeCronInvalid, fmt.Sprintf("invalid rebuild cron expression %q", expr), cause).
		WithDetail("expression", expr).
		WithSuggestion("use a 5-field cron expression such as \"0 0 * * *\"")
}

// IndexError reports an index reader that could not be acquired.
func IndexError(project string, cause error) *SuggestError {
	return New(ErrCodeIndexUnavailable, fmt.Sprintf("index unavailable for project %q", project), cause).
		WithDetail("project", project)
}

// IndexLockedError reports an index whose lock another process still holds.
func IndexLockedError(project string, cause error) *SuggestError {
	return New(ErrCodeIndexLocked, fmt.Sprintf("index for project %q is locked by another process", project), cause).
		WithDetail("project", project)
}

// UnknownProjectError reports a project missing from the configuration.
func UnknownProjectError(project string) *SuggestError {
	return New(ErrCodeUnknownProject, fmt.Sprintf("project %q not found", project), nil).
		WithDetail("project", project)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SuggestError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SuggestError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var se *SuggestError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCode extracts the error code from a SuggestError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SuggestError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
