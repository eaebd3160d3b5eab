package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterInitStatusTool registers get_init_status, the only tool that
// returns a non-error result regardless of lifecycle phase: it exists
// specifically so a caller can poll startup progress.
func RegisterInitStatusTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool("get_init_status",
		mcp.WithDescription("Report the schema index's startup/enrichment lifecycle phase and a human-readable description."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := deps.InitMgr.Status()
		return jsonResult(map[string]any{
			"phase":                   state.Phase,
			"description":             deps.InitMgr.Describe(),
			"started_at":              state.StartedAt,
			"completed_at":            state.CompletedAt,
			"attempts":                state.Attempts,
			"error_message":           state.ErrorMessage,
			"enrich_in_progress":      state.EnrichmentInProgress,
			"enrich_started_at":       state.EnrichmentStartedAt,
			"enrich_completed_at":     state.EnrichmentCompletedAt,
			"enrich_error_message":    state.EnrichmentError,
		})
	})
}
