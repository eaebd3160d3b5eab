package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/schemasense/engine/pkg/sqlintel"
)

// RegisterTableInfoTool registers get_table_info: everything a caller needs
// to write SQL against one table without a second round trip. Archive
// tables are reported here, never filtered, per the archive-exclusion
// scoping decision: suppression only applies to retrieval/planning seed
// selection.
func RegisterTableInfoTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("get_table_info",
		mcp.WithDescription("Get detailed information about one table: columns with business roles, relationships to other tables with compiled JOIN SQL, typical example queries, and indexing notes."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Qualified table name, e.g. \"public.orders\"."),
		),
		mcp.WithBoolean("include_samples",
			mcp.Description("Include sample distinct values for enum-like columns. Defaults to true."),
		),
		mcp.WithArray("role_filter",
			mcp.Description("Restrict returned columns to these business roles (e.g. [\"metric\", \"date\"]). Empty or omitted returns all columns."),
		),
		mcp.WithNumber("max_sample_values",
			mcp.Description("Maximum sample values per column. Defaults to 5."),
		),
		mcp.WithNumber("relationship_limit",
			mcp.Description("Maximum number of relationships to compile. Defaults to 10."),
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

		table := getOptionalString(req, "table")
		if table == "" {
			return NewErrorResult("missing_parameter", "table parameter is required"), nil
		}
		includeSamples := getOptionalBoolWithDefault(req, "include_samples", true)
		maxSampleValues := getOptionalInt(req, "max_sample_values", 5)
		relationshipLimit := getOptionalInt(req, "relationship_limit", 10)

		var roleFilter map[sqlintel.ColumnKind]bool
		if roles := getStringSlice(req, "role_filter"); len(roles) > 0 {
			roleFilter = make(map[sqlintel.ColumnKind]bool, len(roles))
			for _, r := range roles {
				roleFilter[sqlintel.ColumnKind(r)] = true
			}
		}

		info, err := exp.GetTableInfo(table, includeSamples, roleFilter, maxSampleValues, relationshipLimit)
		if err != nil {
			return explorerErrorResult(err), nil
		}
		return jsonResult(info)
	})
}
