package tools

import (
	"net/http"

	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/service"
)

// Dependencies carries what the built-in tools need. Database and Search are
// optional; their tools are only registered when set.
type Dependencies struct {
	WorkDir      string
	HTTPClient   *http.Client
	HTTPGetLimit int
	CommandGuard *security.CommandGuard
	Database     *service.Database
	SQLValidator *security.SQLValidator
	MaxQueryRows int
	Search       *service.ElasticsearchService
	Masker       *security.DataMasker
}

// Builtins returns the tools available for deps.
func Builtins(deps Dependencies) []Tool {
	out := []Tool{
		GetTimeTool(nil),
		ReadFileTool(deps.WorkDir),
		WriteFileTool(deps.WorkDir),
		CalculateTool(),
		HTTPGetTool(deps.HTTPClient, deps.HTTPGetLimit),
	}
	if deps.CommandGuard != nil {
		out = append(out, ExecuteCommandTool(deps.CommandGuard, deps.WorkDir))
	}
	if deps.Database != nil {
		validator := deps.SQLValidator
		if validator == nil {
			validator = security.NewSQLValidator()
		}
		out = append(out,
			ListTablesTool(deps.Database),
			DescribeTableTool(deps.Database),
			QueryDatabaseTool(deps.Database, validator, deps.Masker, deps.MaxQueryRows),
		)
	}
	if deps.Search != nil {
		out = append(out,
			ESListIndicesTool(deps.Search),
			ESMappingTool(deps.Search),
			ESSearchTool(deps.Search, deps.Masker),
		)
	}
	return out
}
