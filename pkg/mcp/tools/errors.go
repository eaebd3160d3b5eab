package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/schemasense/engine/pkg/apperrors"
)

// ErrorResponse represents a structured error in a tool result. This is used
// to return actionable error information to a caller as a successful tool
// result, so error details are visible rather than swallowed by an MCP
// client that only surfaces protocol-level errors.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable/actionable errors a caller should see and can
// potentially fix (bad parameters, unknown table, invalid SQL). System
// failures should still return a Go error so the MCP transport reports them
// as protocol errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{Error: true, Code: code, Message: message}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional context
// a caller can use to self-correct, e.g. a list of valid table names.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{Error: true, Code: code, Message: message, Details: details}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// explorerErrorResult translates a schema-index lookup failure into a
// structured tool result rather than letting it raise past the tool
// boundary: a caller that retries plan_query_for_intent or get_table_info
// during startup should see status-shaped JSON, not a transport error.
func explorerErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrNotReady):
		return NewErrorResult("not_ready", "schema index is not ready yet: "+err.Error())
	case errors.Is(err, apperrors.ErrSchemaReflection):
		return NewErrorResult("schema_reflection_failed", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	default:
		return NewErrorResult("internal_error", err.Error())
	}
}

// jsonResult marshals v and wraps it as a successful tool result. Marshal
// failures here would indicate a programmer error in a hand-built response
// struct, so they fall back to a structured error result rather than a panic.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return NewErrorResult("serialization_error", err.Error()), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
