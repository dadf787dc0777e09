package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	// Given: an EngineError
	err := New(ErrCodeModelMissing, "embedding model 'all-MiniLM-L6-v2' not found", nil)

	// When: formatting for user (no debug)
	result := FormatForUser(err, false)

	// Then: contains message and code
	assert.Contains(t, result, "embedding model 'all-MiniLM-L6-v2' not found")
	assert.Contains(t, result, "[ERR_101_MODEL_MISSING]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	// Given: an error with suggestion
	err := New(ErrCodeBackendUnavailable, "embedding sidecar is not running", nil).
		WithSuggestion("Run 'semdex doctor' to check backend availability")

	// When: formatting for user
	result := FormatForUser(err, false)

	// Then: contains suggestion
	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "semdex doctor")
}

func TestFormatForUser_DebugIncludesCause(t *testing.T) {
	// Given: an error with cause
	cause := errors.New("dial tcp 127.0.0.1:8756: connection refused")
	err := New(ErrCodeBackendUnavailable, "sidecar unreachable", cause)

	// When: formatting with and without debug
	plain := FormatForUser(err, false)
	debug := FormatForUser(err, true)

	// Then: cause shows only in debug mode
	assert.NotContains(t, plain, "connection refused")
	assert.Contains(t, debug, "Cause:")
	assert.Contains(t, debug, "connection refused")
}

func TestFormatForUser_StandardError(t *testing.T) {
	// Given: a standard Go error
	err := errors.New("something went wrong")

	// When: formatting for user
	result := FormatForUser(err, false)

	// Then: shows the message as-is
	assert.Equal(t, "something went wrong", result)
}

func TestFormatForUser_NilError(t *testing.T) {
	assert.Empty(t, FormatForUser(nil, false))
}

func TestFormatForCLI_IncludesCodeAndHint(t *testing.T) {
	// Given: an error with a suggestion
	err := New(ErrCodeCredentialsMissing, "no API key configured", nil).
		WithSuggestion("Set SEMDEX_API_KEY")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: message, hint and code appear
	assert.Contains(t, result, "Error: no API key configured")
	assert.Contains(t, result, "Hint: Set SEMDEX_API_KEY")
	assert.Contains(t, result, "Code: ERR_102_CREDENTIALS_MISSING")
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	// Given: a standard error
	err := errors.New("boom")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: falls back to the internal code
	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatJSON_RoundTrip(t *testing.T) {
	// Given: a fully populated error
	cause := errors.New("disk full")
	err := New(ErrCodeShardIO, "shard 2 write failed", cause).
		WithDetail("shard", "2").
		WithSuggestion("Free disk space and retry")

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Then: all fields survive
	assert.Equal(t, "ERR_301_SHARD_IO", decoded["code"])
	assert.Equal(t, "shard 2 write failed", decoded["message"])
	assert.Equal(t, "STORAGE", decoded["category"])
	assert.Equal(t, "ERROR", decoded["severity"])
	assert.Equal(t, "disk full", decoded["cause"])
	assert.Equal(t, "Free disk space and retry", decoded["suggestion"])
	assert.Equal(t, false, decoded["retryable"])

	details, ok := decoded["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2", details["shard"])
}

func TestFormatJSON_NilError(t *testing.T) {
	data, err := FormatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestFormatForLog_ProducesSlogAttrs(t *testing.T) {
	// Given: an error with details
	err := New(ErrCodeRateLimited, "429 from backend", nil).
		WithDetail("attempt", "2")

	// When: formatting for log
	fields := FormatForLog(err)

	// Then: structured fields are present
	assert.Equal(t, "ERR_202_RATE_LIMITED", fields["error_code"])
	assert.Equal(t, "429 from backend", fields["message"])
	assert.Equal(t, "EMBEDDING", fields["category"])
	assert.Equal(t, true, fields["retryable"])
	assert.Equal(t, "2", fields["detail_attempt"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	fields := FormatForLog(errors.New("plain"))
	assert.Equal(t, "plain", fields["error"])
	assert.NotContains(t, fields, "error_code")
}

func TestFormatForLog_NilError(t *testing.T) {
	assert.Nil(t, FormatForLog(nil))
}
