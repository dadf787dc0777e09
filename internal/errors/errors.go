package errors

import (
	"errors"
	"fmt"
)

// EngineError is the structured error type for semdex.
// It provides rich context for error handling, logging, and user presentation.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_301_SHARD_IO").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Init, Embedding, Storage, etc.).
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
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with EngineError.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *EngineError) WithSuggestion(suggestion string) *EngineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new EngineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an EngineError from an existing error.
// The error's message becomes the EngineError message.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InitializationError creates a backend-initialization error.
// Callers surface these as a recoverable "embedder unavailable" state.
func InitializationError(message string, cause error) *EngineError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// EmbeddingError creates an embedding call failure.
func EmbeddingError(message string, cause error) *EngineError {
	return New(ErrCodeEmbedFailed, message, cause)
}

// StorageError creates a shard storage error.
func StorageError(message string, cause error) *EngineError {
	return New(ErrCodeShardIO, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *EngineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *EngineError {
	return New(ErrCodeInternal, message, cause)
}

// asEngineError extracts an *EngineError from anywhere in the chain.
func asEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsInitialization reports whether err is an initialization-category error.
func IsInitialization(err error) bool {
	if ee, ok := asEngineError(err); ok {
		return ee.Category == CategoryInit
	}
	return false
}

// IsEmbedding reports whether err is an embedding-category error.
func IsEmbedding(err error) bool {
	if ee, ok := asEngineError(err); ok {
		return ee.Category == CategoryEmbedding
	}
	return false
}

// IsStorage reports whether err is a storage-category error.
func IsStorage(err error) bool {
	if ee, ok := asEngineError(err); ok {
		return ee.Category == CategoryStorage
	}
	return false
}

// IsValidation reports whether err is a validation-category error.
func IsValidation(err error) bool {
	if ee, ok := asEngineError(err); ok {
		return ee.Category == CategoryValidation
	}
	return false
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain contains an EngineError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ee, ok := asEngineError(err); ok {
		return ee.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current shard operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ee, ok := asEngineError(err); ok {
		return ee.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an EngineError.
// Returns empty string if not an EngineError.
func GetCode(err error) string {
	if ee, ok := asEngineError(err); ok {
		return ee.Code
	}
	return ""
}

// GetCategory extracts the category from an EngineError.
// Returns empty string if not an EngineError.
func GetCategory(err error) Category {
	if ee, ok := asEngineError(err); ok {
		return ee.Category
	}
	return ""
}
