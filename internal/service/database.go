package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/models"
)

// Database runs read-only statements for the database tools.
type Database struct {
	pool *pgxpool.Pool
}

// NewDatabase opens a connection pool for url. The pool connects lazily;
// use TestConnection to fail fast at startup.
func NewDatabase(ctx context.Context, url string, maxConns int32) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	return &Database{pool: pool}, nil
}

func (d *Database) TestConnection(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *Database) Close() {
	d.pool.Close()
}

// Query runs sql inside a read-only transaction and returns at most maxRows
// rows. The transaction is always rolled back.
func (d *Database) Query(ctx context.Context, sql string, maxRows int) (*models.QueryResult, error) {
	start := time.Now()

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Debug().Err(rbErr).Msg("rollback read-only tx")
		}
	}()

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &models.QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[columns[i]] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// ListTables returns the user tables visible to the connection.
func (d *Database) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TableInfo, error) {
		var t models.TableInfo
		err := row.Scan(&t.Schema, &t.Name, &t.Type)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// DescribeTable returns the columns of schema.table in ordinal order.
func (d *Database) DescribeTable(ctx context.Context, schema, table string) ([]models.ColumnInfo, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe table: %w", err)
	}
	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ColumnInfo, error) {
		var c models.ColumnInfo
		err := row.Scan(&c.Name, &c.Type, &c.Nullable)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("describe table: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}
	return columns, nil
}
