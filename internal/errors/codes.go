// Package errors provides structured error handling for semdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Initialization errors (embedder backend/model unavailable — recoverable)
//   - 2XX: Embedding errors (single-call failures, retried per backend policy)
//   - 3XX: Storage errors (shard disk/database failures)
//   - 4XX: Validation errors (bad input — rejected immediately)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryInit indicates embedder/backend initialization errors.
	// These are recoverable: the engine stays in a degraded "not ready" state.
	CategoryInit Category = "INIT"
	// CategoryEmbedding indicates embedding call failures.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryStorage indicates shard disk and database errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort the current operation.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the engine can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Initialization errors (100-199)
	ErrCodeModelMissing       = "ERR_101_MODEL_MISSING"
	ErrCodeCredentialsMissing = "ERR_102_CREDENTIALS_MISSING"
	ErrCodeBackendUnavailable = "ERR_103_BACKEND_UNAVAILABLE"
	ErrCodeGPURuntimeMissing  = "ERR_104_GPU_RUNTIME_MISSING"
	ErrCodeModelDownload      = "ERR_105_MODEL_DOWNLOAD"

	// Embedding errors (200-299)
	ErrCodeEmbedFailed    = "ERR_201_EMBED_FAILED"
	ErrCodeRateLimited    = "ERR_202_RATE_LIMITED"
	ErrCodeAuthFailed     = "ERR_203_AUTH_FAILED"
	ErrCodeBackendTimeout = "ERR_204_BACKEND_TIMEOUT"
	ErrCodeEmbedderClosed = "ERR_205_EMBEDDER_CLOSED"

	// Storage errors (300-399)
	ErrCodeShardIO           = "ERR_301_SHARD_IO"
	ErrCodeCorruptIndex      = "ERR_302_CORRUPT_INDEX"
	ErrCodeDimensionMismatch = "ERR_303_DIMENSION_MISMATCH"
	ErrCodeManifestMismatch  = "ERR_304_MANIFEST_MISMATCH"
	ErrCodeStoreClosed       = "ERR_305_STORE_CLOSED"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty    = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidPath   = "ERR_403_INVALID_PATH"
	ErrCodeInvalidShard  = "ERR_404_INVALID_SHARD"
	ErrCodeEmptyFileList = "ERR_405_EMPTY_FILE_LIST"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodePoolExhausted = "ERR_502_POOL_EXHAUSTED"
	ErrCodeTaskTimeout   = "ERR_503_TASK_TIMEOUT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_MODEL_MISSING")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryInit
	case '2':
		return CategoryEmbedding
	case '3':
		return CategoryStorage
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal for the affected shard's current operation: the store cannot
	// continue until cleared or rebuilt.
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDimensionMismatch, ErrCodeManifestMismatch:
		return SeverityFatal
	}

	// Initialization failures leave the engine degraded, not dead.
	if categoryFromCode(code) == CategoryInit {
		return SeverityWarning
	}

	// Retryable embedding errors get warning severity.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRateLimited, ErrCodeBackendTimeout, ErrCodeModelDownload:
		return true
	default:
		return false
	}
}
