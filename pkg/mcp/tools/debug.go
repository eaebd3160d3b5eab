package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/schemasense/engine/pkg/sqlintel"
)

// RegisterDebugTools registers find_tables and find_columns, raw retrieval
// escape hatches for inspecting how lexical/embedding scoring ranks tables
// for a query without going through the full planning pipeline. Gated
// behind debug_tools_enabled since they expose internal scoring that's
// more useful to an engineer debugging retrieval than to a caller writing
// SQL.
func RegisterDebugTools(s *server.MCPServer, deps *Deps) {
	registerFindTablesTool(s, deps)
	registerFindColumnsTool(s, deps)
}

func registerFindTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("find_tables",
		mcp.WithDescription("Debug tool: rank candidate tables for a query using a specific retrieval approach, returning raw scores."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The natural-language query to score tables against.")),
		mcp.WithString("approach", mcp.Description("One of lexical, emb_table, emb_column, combo. Defaults to combo.")),
		mcp.WithNumber("k", mcp.Description("Maximum number of results. Defaults to 10.")),
		mcp.WithNumber("alpha", mcp.Description("Blend weight between lexical and embedding scores for combo, in [0,1]. Defaults to 0.7.")),
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
		approach := sqlintel.RetrievalApproach(getOptionalString(req, "approach"))
		if approach == "" {
			approach = sqlintel.ApproachCombined
		}
		k := getOptionalInt(req, "k", 10)
		alpha := getOptionalFloat(req, "alpha", 0.7)

		scores, err := exp.Retrieve(ctx, query, approach, k, alpha)
		if err != nil {
			return explorerErrorResult(err), nil
		}
		return jsonResult(map[string]any{"approach": approach, "results": scores})
	})
}

func registerFindColumnsTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("find_columns",
		mcp.WithDescription("Debug tool: rank candidate tables using column-level embeddings for a query, returning raw scores."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The natural-language query to score columns against.")),
		mcp.WithNumber("k", mcp.Description("Maximum number of results. Defaults to 10.")),
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
		k := getOptionalInt(req, "k", 10)

		scores, err := exp.Retrieve(ctx, query, sqlintel.ApproachEmbeddingColumn, k, 0.7)
		if err != nil {
			return explorerErrorResult(err), nil
		}
		return jsonResult(map[string]any{"results": scores})
	})
}
