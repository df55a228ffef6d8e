package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/service"
)

const DefaultMaxQueryRows = 200

type queryDatabaseParams struct {
	SQL string `json:"sql" jsonschema:"description=A single read-only SELECT statement (WITH ... SELECT is allowed)"`
}

// QueryDatabaseTool executes a read-only SQL query and returns the rows as JSON.
func QueryDatabaseTool(db *service.Database, validator *security.SQLValidator, masker *security.DataMasker, maxRows int) Tool {
	if maxRows <= 0 {
		maxRows = DefaultMaxQueryRows
	}
	return Tool{
		Name:        "query_database",
		Description: fmt.Sprintf("Execute a read-only SQL SELECT query against the PostgreSQL database and return at most %d rows as JSON.", maxRows),
		InputSchema: SchemaFor[queryDatabaseParams](),
		Executor: Typed(func(ctx context.Context, p queryDatabaseParams) (string, error) {
			if p.SQL == "" {
				return "", fmt.Errorf("sql is required")
			}
			if err := validator.Validate(p.SQL); err != nil {
				return "", err
			}

			result, err := db.Query(ctx, p.SQL, maxRows)
			if err != nil {
				return "", fmt.Errorf("execute query: %w", err)
			}
			result.Rows = masker.MaskRows(result.Rows)

			b, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("marshal rows: %w", err)
			}
			return string(b), nil
		}),
	}
}
