package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterExecuteQueryTool registers execute_query: a bounded, read-only
// SQL execution path. It never raises for SQL-level failures (banned
// keyword, validation error, execution error) - those are reflected in the
// returned result's status field, matching the execution runner's contract.
func RegisterExecuteQueryTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("execute_query",
		mcp.WithDescription("Execute a read-only SQL SELECT statement against the connected database. Results are row- and cell-truncated to bounded limits; mutating statements are rejected."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute. Must be a SELECT; DML/DDL is rejected."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText := getOptionalString(req, "sql")
		if sqlText == "" {
			return NewErrorResult("missing_parameter", "sql parameter is required"), nil
		}
		if deps.Runner == nil {
			return NewErrorResult("not_configured", "no query executor is configured for this database"), nil
		}

		result := deps.Runner.Run(ctx, sqlText)
		return jsonResult(result)
	})
}
