package tools

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/schemasense/engine/pkg/config"
	"github.com/schemasense/engine/pkg/execrunner"
	"github.com/schemasense/engine/pkg/sqlintel"
)

// Deps bundles everything the tool handlers need: the schema index
// lifecycle manager, the bounded execution runner for execute_query, the
// resolved config (for feature gates like debug tools), and a logger.
type Deps struct {
	InitMgr *sqlintel.InitManager
	Runner  *execrunner.Runner
	Config  *config.Config
	Logger  *zap.Logger
}

// RegisterAll registers every tool this service exposes against s, gating
// the debug tools behind Config.DebugToolsEnabled.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	RegisterInitStatusTool(s, deps)
	RegisterDatabaseOverviewTool(s, deps)
	RegisterSubjectAreasTool(s, deps)
	RegisterTableInfoTool(s, deps)
	RegisterPlanQueryTool(s, deps)
	RegisterExecuteQueryTool(s, deps)
	if deps.Config != nil && deps.Config.DebugToolsEnabled {
		RegisterDebugTools(s, deps)
	}
}

// explorer resolves the current Explorer, or returns the InitManager's error
// (which callers turn into a structured result via explorerErrorResult).
func (d *Deps) explorer() (*sqlintel.Explorer, error) {
	return d.InitMgr.Explorer()
}
