// Package apperrors defines the sentinel errors used across the service to
// classify failures into a small taxonomy that MCP tool handlers translate
// into structured error results.
package apperrors

import "errors"

var (
	// ErrNotReady indicates a tool was called before the schema index
	// finished its initial reflection pass.
	ErrNotReady = errors.New("schema index not ready")

	// ErrNotFound indicates a requested table, column, or subject area does
	// not exist in the current schema card.
	ErrNotFound = errors.New("not found")

	// ErrConfig indicates a configuration value was missing or invalid at
	// startup (e.g. an unparseable database_url).
	ErrConfig = errors.New("invalid configuration")

	// ErrSchemaReflection indicates schema discovery against the target
	// database failed (connectivity, permissions, or an unsupported dialect).
	ErrSchemaReflection = errors.New("schema reflection failed")

	// ErrEmbeddingInit indicates the embedding backend failed to initialize.
	// Callers degrade to lexical-only retrieval rather than treating this
	// as fatal.
	ErrEmbeddingInit = errors.New("embedding backend initialization failed")

	// ErrValidation indicates a caller-supplied SQL statement failed the
	// SELECT-only guard, injection scan, or dialect validation.
	ErrValidation = errors.New("query validation failed")

	// ErrExecution indicates a validated query failed when run against the
	// target database.
	ErrExecution = errors.New("query execution failed")
)
