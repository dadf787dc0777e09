// Package mcpserver exposes the search engine to AI coding assistants
// over the Model Context Protocol. It is a thin adapter: every tool call
// delegates to the engine facade and carries no indexing or search logic
// of its own.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// JSON-RPC error codes returned to MCP clients.
const (
	// ErrCodeIndexNotReady indicates the engine is still initializing or
	// the index has not been built yet.
	ErrCodeIndexNotReady = -32001

	// ErrCodeEmbeddingFailed indicates the embedding backend failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// RPCError is a JSON-RPC error with code and message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error with a custom message.
func NewInvalidParamsError(msg string) *RPCError {
	return &RPCError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts engine errors to JSON-RPC errors. Engine error
// suggestions are appended to the message so the assistant can relay
// actionable hints to the user.
func MapError(err error) *RPCError {
	if err == nil {
		return nil
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &RPCError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &RPCError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var engErr *semerrors.EngineError
	if errors.As(err, &engErr) {
		message := engErr.Message
		if engErr.Suggestion != "" {
			message = fmt.Sprintf("%s %s", engErr.Message, engErr.Suggestion)
		}

		switch engErr.Category {
		case semerrors.CategoryValidation:
			return &RPCError{Code: ErrCodeInvalidParams, Message: message}
		case semerrors.CategoryEmbedding:
			return &RPCError{Code: ErrCodeEmbeddingFailed, Message: message}
		case semerrors.CategoryStorage:
			if engErr.Code == semerrors.ErrCodeStoreClosed {
				return &RPCError{Code: ErrCodeIndexNotReady, Message: message}
			}
			return &RPCError{Code: ErrCodeInternalError, Message: message}
		case semerrors.CategoryInit:
			return &RPCError{Code: ErrCodeIndexNotReady, Message: message}
		default:
			return &RPCError{Code: ErrCodeInternalError, Message: message}
		}
	}

	return &RPCError{Code: ErrCodeInternalError, Message: "Internal server error."}
}
