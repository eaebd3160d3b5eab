package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterDatabaseOverviewTool registers get_database_overview: a
// whole-database orientation for a caller that hasn't yet picked tables.
func RegisterDatabaseOverviewTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("get_database_overview",
		mcp.WithDescription("Get a whole-database orientation: dialect, table count, subject areas, most important tables, and structural patterns (star schema, normalized, time-series, analytics)."),
		mcp.WithBoolean("include_subject_area_details",
			mcp.Description("Include per-subject-area table lists and descriptions instead of a compact id->description map. Defaults to false."),
		),
		mcp.WithNumber("area_limit",
			mcp.Description("Maximum number of subject areas to report, ranked by member-table count. Defaults to 8."),
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
		includeDetails := getOptionalBoolWithDefault(req, "include_subject_area_details", false)
		areaLimit := getOptionalInt(req, "area_limit", 8)

		overview := exp.GetDatabaseOverview(includeDetails, areaLimit)
		return jsonResult(overview)
	})
}
