package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/natalis/natalis/internal/warehouse"
)

// Dialect holds the statements that differ between engines.
type Dialect struct {
	Name string
	// ListTables returns the statement and its arguments listing the table
	// names of one dataset. The statement yields a single text column.
	ListTables func(dataset string) (string, []any)
}

var BigQuery = Dialect{
	Name: "bigquery",
	ListTables: func(dataset string) (string, []any) {
		return fmt.Sprintf("SELECT table_name FROM `%s`.INFORMATION_SCHEMA.TABLES ORDER BY table_name", strings.ReplaceAll(dataset, "`", "")), nil
	},
}

var DuckDB = Dialect{
	Name: "duckdb",
	ListTables: func(dataset string) (string, []any) {
		if idx := strings.LastIndex(dataset, "."); idx >= 0 {
			return "SELECT table_name FROM information_schema.tables WHERE table_catalog = ? AND table_schema = ? ORDER BY table_name", []any{dataset[:idx], dataset[idx+1:]}
		}
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name", []any{dataset}
	},
}

type Client struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Client {
	return &Client{db: db, dialect: dialect}
}

func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) ListTables(ctx context.Context, dataset string) ([]string, error) {
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, fmt.Errorf("dataset is required")
	}
	statement, args := c.dialect.ListTables(dataset)
	rows, err := c.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables of %q: %w", dataset, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		out = append(out, dataset+"."+name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return out, nil
}

// Query submits sqlText as is and materializes every row.
func (c *Client) Query(ctx context.Context, sqlText string) (warehouse.Table, error) {
	if strings.TrimSpace(sqlText) == "" {
		return warehouse.Table{}, fmt.Errorf("sql is required")
	}
	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.Table{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return warehouse.Table{}, fmt.Errorf("query columns: %w", err)
	}
	table := warehouse.Table{
		Columns: make([]warehouse.Column, len(columnTypes)),
		Rows:    make([][]any, 0),
	}
	for i, columnType := range columnTypes {
		table.Columns[i] = warehouse.Column{
			Name: columnType.Name(),
			Kind: warehouse.KindFromDatabaseType(columnType.DatabaseTypeName()),
		}
	}

	for rows.Next() {
		values := make([]any, len(columnTypes))
		scanTargets := make([]any, len(columnTypes))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.Table{}, fmt.Errorf("scan row: %w", err)
		}
		table.Rows = append(table.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return warehouse.Table{}, fmt.Errorf("iterate rows: %w", err)
	}

	warehouse.InferKinds(&table)
	return table, nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
