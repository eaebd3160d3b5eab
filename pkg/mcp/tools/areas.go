package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterSubjectAreasTool registers get_subject_areas: the subject-area
// breakdown on its own, for a caller that already has an overview and wants
// the full ranked list rather than the overview's truncated summary.
func RegisterSubjectAreasTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("get_subject_areas",
		mcp.WithDescription("List subject areas (FK-graph communities, roughly star-schema or bounded-context boundaries) ranked by member-table count."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of subject areas to return. Defaults to 12."),
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
		limit := getOptionalInt(req, "limit", 12)
		areas := exp.GetSubjectAreas(limit)
		return jsonResult(map[string]any{"subject_areas": areas})
	})
}
