package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolloop/toolloop/internal/service"
)

// ListTablesTool lists the tables visible to the database connection.
func ListTablesTool(db *service.Database) Tool {
	return Tool{
		Name:        "list_tables",
		Description: "List all tables in the PostgreSQL database. Use this to discover what data is available before writing SQL.",
		InputSchema: SchemaFor[NoParams](),
		Executor: Typed(func(ctx context.Context, _ NoParams) (string, error) {
			tables, err := db.ListTables(ctx)
			if err != nil {
				return "", err
			}
			if len(tables) == 0 {
				return "No tables found.", nil
			}
			var sb strings.Builder
			sb.WriteString("Tables:\n")
			for _, t := range tables {
				fmt.Fprintf(&sb, "  - %s.%s (%s)\n", t.Schema, t.Name, strings.ToLower(t.Type))
			}
			return sb.String(), nil
		}),
	}
}

type describeTableParams struct {
	Table  string `json:"table" jsonschema:"description=Table name"`
	Schema string `json:"schema,omitempty" jsonschema:"description=Schema name (default: public)"`
}

// DescribeTableTool returns the column names and types of a table.
func DescribeTableTool(db *service.Database) Tool {
	return Tool{
		Name:        "describe_table",
		Description: "Get the columns (names, types, nullability) of a PostgreSQL table. Use this before writing SQL to understand the table structure.",
		InputSchema: SchemaFor[describeTableParams](),
		Executor: Typed(func(ctx context.Context, p describeTableParams) (string, error) {
			if p.Table == "" {
				return "", fmt.Errorf("table is required")
			}
			if p.Schema == "" {
				p.Schema = "public"
			}
			columns, err := db.DescribeTable(ctx, p.Schema, p.Table)
			if err != nil {
				return "", err
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Table: %s.%s\nColumns:\n", p.Schema, p.Table)
			for _, c := range columns {
				null := "NOT NULL"
				if c.Nullable {
					null = "NULL"
				}
				fmt.Fprintf(&sb, "  %s %s %s\n", c.Name, c.Type, null)
			}
			return sb.String(), nil
		}),
	}
}
