package errors

import (
	"fmt"
)

// AtlasError is the structured error type for CodeAtlas.
// It carries a stable code plus context for logging and user presentation.
type AtlasError struct {
	// Code is the unique error code (e.g., "ERR_303_RATE_LIMITED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AtlasError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AtlasError) Unwrap() error {
	return e.Cause
}

// Is matches against another AtlasError by code, enabling errors.Is.
func (e *AtlasError) Is(target error) bool {
	if t, ok := target.(*AtlasError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AtlasError) WithDetail(key, value string) *AtlasError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AtlasError) WithSuggestion(suggestion string) *AtlasError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AtlasError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AtlasError {
	return &AtlasError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AtlasError from an existing error.
// The error's message becomes the AtlasError message.
func Wrap(code string, err error) *AtlasError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AtlasError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a database-related error.
func StorageError(message string, cause error) *AtlasError {
	return New(ErrCodeStoreQuery, message, cause)
}

// RateLimitError creates a provider rate-limit error. Always retryable.
func RateLimitError(message string, cause error) *AtlasError {
	return New(ErrCodeRateLimited, message, cause)
}

// TransientError creates a retryable provider/network error.
func TransientError(message string, cause error) *AtlasError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// AuthError creates a provider authentication error. Never retryable.
func AuthError(message string, cause error) *AtlasError {
	return New(ErrCodeProviderAuth, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AtlasError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AtlasError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an AtlasError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AtlasError); ok {
		return ae.Retryable
	}
	return false
}

// IsRateLimited reports whether err is a provider rate-limit error.
func IsRateLimited(err error) bool {
	return GetCode(err) == ErrCodeRateLimited
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AtlasError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AtlasError.
// Returns empty string if not an AtlasError.
func GetCode(err error) string {
	if ae, ok := err.(*AtlasError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AtlasError.
// Returns empty string if not an AtlasError.
func GetCategory(err error) Category {
	if ae, ok := err.(*AtlasError); ok {
		return ae.Category
	}
	return ""
}
