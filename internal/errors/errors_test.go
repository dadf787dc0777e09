package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection refused")

	// When: wrapping with EngineError
	engErr := New(ErrCodeBackendUnavailable, "embedding backend unreachable", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, engErr)
	assert.Equal(t, originalErr, errors.Unwrap(engErr))
	assert.True(t, errors.Is(engErr, originalErr))
}

func TestEngineError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "init error",
			code:     ErrCodeModelMissing,
			message:  "model not found on disk",
			expected: "[ERR_101_MODEL_MISSING] model not found on disk",
		},
		{
			name:     "embedding error",
			code:     ErrCodeRateLimited,
			message:  "429 from backend",
			expected: "[ERR_202_RATE_LIMITED] 429 from backend",
		},
		{
			name:     "storage error",
			code:     ErrCodeShardIO,
			message:  "shard 3 write failed",
			expected: "[ERR_301_SHARD_IO] shard 3 write failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestEngineError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with the same code
	err1 := New(ErrCodeQueryEmpty, "query for index A is empty", nil)
	err2 := New(ErrCodeQueryEmpty, "query for index B is empty", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestEngineError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeQueryEmpty, "empty query", nil)
	err2 := New(ErrCodeInvalidPath, "bad path", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestEngineError_WithDetail_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeShardIO, "shard write failed", nil)

	// When: adding details
	err = err.WithDetail("shard", "3")
	err = err.WithDetail("path", "/idx/shards/003/records.db")

	// Then: details are available
	assert.Equal(t, "3", err.Details["shard"])
	assert.Equal(t, "/idx/shards/003/records.db", err.Details["path"])
}

func TestEngineError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a credentials error
	err := New(ErrCodeCredentialsMissing, "no API key configured", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Set SEMDEX_API_KEY or switch to the static embedder")

	// Then: suggestion is available
	assert.Equal(t, "Set SEMDEX_API_KEY or switch to the static embedder", err.Suggestion)
}

func TestEngineError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeModelMissing, CategoryInit},
		{ErrCodeBackendUnavailable, CategoryInit},
		{ErrCodeEmbedFailed, CategoryEmbedding},
		{ErrCodeRateLimited, CategoryEmbedding},
		{ErrCodeShardIO, CategoryStorage},
		{ErrCodeCorruptIndex, CategoryStorage},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeQueryEmpty, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeTaskTimeout, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestEngineError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		// Corruption is fatal for the shard operation
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeDimensionMismatch, SeverityFatal},
		{ErrCodeManifestMismatch, SeverityFatal},
		// Init failures degrade, they do not kill
		{ErrCodeModelMissing, SeverityWarning},
		{ErrCodeBackendUnavailable, SeverityWarning},
		// Retryable embedding failures warn
		{ErrCodeRateLimited, SeverityWarning},
		{ErrCodeBackendTimeout, SeverityWarning},
		// Everything else is a plain error
		{ErrCodeAuthFailed, SeverityError},
		{ErrCodeQueryEmpty, SeverityError},
		{ErrCodeInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestEngineError_RetryableFlag(t *testing.T) {
	assert.True(t, New(ErrCodeRateLimited, "429", nil).Retryable)
	assert.True(t, New(ErrCodeBackendTimeout, "deadline", nil).Retryable)
	assert.True(t, New(ErrCodeModelDownload, "interrupted", nil).Retryable)
	assert.False(t, New(ErrCodeAuthFailed, "401", nil).Retryable)
	assert.False(t, New(ErrCodeQueryEmpty, "empty", nil).Retryable)
}

func TestConstructors_AssignExpectedCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *EngineError
		wantCode string
		wantCat  Category
	}{
		{"initialization", InitializationError("backend down", nil), ErrCodeBackendUnavailable, CategoryInit},
		{"embedding", EmbeddingError("embed failed", nil), ErrCodeEmbedFailed, CategoryEmbedding},
		{"storage", StorageError("disk full", nil), ErrCodeShardIO, CategoryStorage},
		{"validation", ValidationError("bad input", nil), ErrCodeInvalidInput, CategoryValidation},
		{"internal", InternalError("unexpected", nil), ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantCat, tt.err.Category)
		})
	}
}

func TestPredicates_ClassifyByCategory(t *testing.T) {
	initErr := InitializationError("model missing", nil)
	embedErr := EmbeddingError("embed failed", nil)
	storeErr := StorageError("shard io", nil)
	valErr := ValidationError("bad input", nil)

	assert.True(t, IsInitialization(initErr))
	assert.False(t, IsInitialization(embedErr))

	assert.True(t, IsEmbedding(embedErr))
	assert.False(t, IsEmbedding(storeErr))

	assert.True(t, IsStorage(storeErr))
	assert.False(t, IsStorage(valErr))

	assert.True(t, IsValidation(valErr))
	assert.False(t, IsValidation(initErr))
}

func TestPredicates_HandleNilAndPlainErrors(t *testing.T) {
	assert.False(t, IsInitialization(nil))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsFatal(nil))

	plain := errors.New("plain error")
	assert.False(t, IsStorage(plain))
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, "", GetCode(plain))
	assert.Equal(t, Category(""), GetCategory(plain))
}

func TestIsRetryable_DetectsRetryableCodes(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeRateLimited, "429", nil)))
	assert.False(t, IsRetryable(New(ErrCodeAuthFailed, "401", nil)))
}

func TestIsFatal_DetectsFatalSeverity(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "bad graph", nil)))
	assert.False(t, IsFatal(New(ErrCodeEmbedFailed, "failed", nil)))
}

func TestGetCode_ExtractsCode(t *testing.T) {
	err := New(ErrCodeDimensionMismatch, "got 384 want 768", nil)
	assert.Equal(t, ErrCodeDimensionMismatch, GetCode(err))
}

func TestGetCategory_ExtractsCategory(t *testing.T) {
	err := New(ErrCodeAuthFailed, "401", nil)
	assert.Equal(t, CategoryEmbedding, GetCategory(err))
}
