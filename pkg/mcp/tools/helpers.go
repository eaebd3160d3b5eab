// Package tools implements the MCP tool surface over the schema
// intelligence engine: plan_query_for_intent, get_database_overview,
// get_table_info, get_init_status, get_subject_areas, execute_query, and
// (when enabled) the find_tables/find_columns debug tools.
package tools

import "github.com/mark3labs/mcp-go/mcp"

// getOptionalString extracts an optional string argument from the request,
// returning "" when absent or of the wrong type.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, _ := args[key].(string)
	return val
}

// getOptionalBool extracts an optional boolean argument.
func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return false, false
	}
	val, ok := args[key].(bool)
	return val, ok
}

// getOptionalBoolWithDefault extracts an optional boolean argument, falling
// back to defaultVal when absent.
func getOptionalBoolWithDefault(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	if val, ok := getOptionalBool(req, key); ok {
		return val
	}
	return defaultVal
}

// getOptionalInt extracts an optional integer argument (JSON numbers decode
// as float64), falling back to defaultVal when absent or non-numeric.
func getOptionalInt(req mcp.CallToolRequest, key string, defaultVal int) int {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return defaultVal
	}
	val, ok := args[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(val)
}

// getOptionalFloat extracts an optional float argument, falling back to
// defaultVal when absent or non-numeric.
func getOptionalFloat(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return defaultVal
	}
	val, ok := args[key].(float64)
	if !ok {
		return defaultVal
	}
	return val
}

// getStringSlice extracts a slice of strings from a JSON array argument.
func getStringSlice(req mcp.CallToolRequest, key string) []string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	val, ok := args[key].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(val))
	for _, item := range val {
		if str, ok := item.(string); ok {
			result = append(result, str)
		}
	}
	return result
}

// getOptionalObject extracts a nested object argument as a map.
func getOptionalObject(req mcp.CallToolRequest, key string) map[string]any {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	obj, _ := args[key].(map[string]any)
	return obj
}
