package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterPlanQueryTool registers plan_query_for_intent: retrieval over
// candidate tables for a natural-language question, FK-following graph
// expansion, and a structured QueryPlan with join examples and candidate
// SELECT/GROUP BY/WHERE columns.
func RegisterPlanQueryTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("plan_query_for_intent",
		mcp.WithDescription("Plan which tables and columns to use for a natural-language question: retrieves candidate tables, expands them via foreign keys, and returns compiled join examples plus SELECT/GROUP BY/WHERE candidates."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The natural-language question to plan for."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of candidate tables to retrieve before expansion. Defaults to the configured planning top_k_tables."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		exp, err := deps.explorer()
		if err != nil {
			return explorerErrorResult(err), nil
		}

		query := getOptionalString(req, "query")
		if query == "" {
			return NewErrorResult("missing_parameter", "query parameter is required"), nil
		}
		topK := getOptionalInt(req, "top_k", 0)

		plan, err := exp.Plan(ctx, query, topK)
		if err != nil {
			return explorerErrorResult(err), nil
		}
		return jsonResult(plan)
	})
}
