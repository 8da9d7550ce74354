package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/natalis/natalis/internal/storage"
	"github.com/natalis/natalis/internal/warehouse"
	"github.com/natalis/natalis/internal/warehouse/sqldb"
)

type Config struct {
	// Dataset is either a schema name or catalog.schema, mirroring how the
	// public BigQuery tables are addressed.
	Dataset string
	// Objects maps table names to parquet object keys.
	Objects map[string]string
}

// Client serves parquet extracts from object storage through an in-memory
// DuckDB database.
type Client struct {
	*sqldb.Client
	workDir string
}

func Open(ctx context.Context, store storage.ObjectStore, cfg Config) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: object store is required", warehouse.ErrConnection)
	}
	catalog, schemaName := splitDataset(cfg.Dataset)
	if schemaName == "" {
		return nil, fmt.Errorf("%w: dataset is required", warehouse.ErrConnection)
	}
	if len(cfg.Objects) == 0 {
		return nil, fmt.Errorf("%w: no parquet objects configured", warehouse.ErrConnection)
	}

	workDir, err := os.MkdirTemp("", "natalis-duckdb-")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %w", warehouse.ErrConnection, err)
	}
	cleanup := func() { _ = os.RemoveAll(workDir) }

	tables := make([]string, 0, len(cfg.Objects))
	for table := range cfg.Objects {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	localPaths := make(map[string]string, len(tables))
	for _, table := range tables {
		localPath, err := fetchObject(ctx, store, workDir, table, cfg.Objects[table])
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: %w", warehouse.ErrConnection, err)
		}
		localPaths[table] = localPath
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: open duckdb: %w", warehouse.ErrConnection, err)
	}

	statements := make([]string, 0, len(tables)+2)
	qualifiedSchema := quoteIdent(schemaName)
	if catalog != "" {
		statements = append(statements, fmt.Sprintf("ATTACH ':memory:' AS %s", quoteIdent(catalog)))
		qualifiedSchema = quoteIdent(catalog) + "." + qualifiedSchema
	}
	statements = append(statements, "CREATE SCHEMA IF NOT EXISTS "+qualifiedSchema)
	for _, table := range tables {
		statements = append(statements, fmt.Sprintf(
			"CREATE OR REPLACE VIEW %s.%s AS SELECT * FROM read_parquet(%s)",
			qualifiedSchema, quoteIdent(table), quoteString(localPaths[table]),
		))
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			_ = db.Close()
			cleanup()
			return nil, fmt.Errorf("%w: prepare dataset: %w", warehouse.ErrConnection, err)
		}
	}

	return &Client{Client: sqldb.New(db, sqldb.DuckDB), workDir: workDir}, nil
}

// Query accepts BigQuery style backtick paths so synthesized SQL runs
// unchanged against the extract.
func (c *Client) Query(ctx context.Context, sqlText string) (warehouse.Table, error) {
	return c.Client.Query(ctx, RewriteBacktickPaths(sqlText))
}

func (c *Client) Close() error {
	err := c.Client.Close()
	if removeErr := os.RemoveAll(c.workDir); removeErr != nil && err == nil {
		err = fmt.Errorf("remove work dir: %w", removeErr)
	}
	return err
}

func fetchObject(ctx context.Context, store storage.ObjectStore, workDir, table, key string) (string, error) {
	info, err := store.Stat(ctx, key)
	if err != nil {
		return "", fmt.Errorf("stat object %q: %w", key, err)
	}
	if info.Size == 0 {
		return "", fmt.Errorf("object %q is empty", key)
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	localPath := filepath.Join(workDir, sanitizeFileComponent(table)+".parquet")
	if err := writeFile(localPath, reader); err != nil {
		return "", fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	return localPath, nil
}

// RewriteBacktickPaths turns `a.b.c` into "a"."b"."c". Text inside single
// quoted literals is left alone.
func RewriteBacktickPaths(sqlText string) string {
	var b strings.Builder
	inLiteral := false
	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		switch {
		case ch == '\'':
			inLiteral = !inLiteral
			b.WriteByte(ch)
		case ch == '`' && !inLiteral:
			end := strings.IndexByte(sqlText[i+1:], '`')
			if end < 0 {
				b.WriteString(sqlText[i:])
				return b.String()
			}
			parts := strings.Split(sqlText[i+1:i+1+end], ".")
			for j, part := range parts {
				if j > 0 {
					b.WriteByte('.')
				}
				b.WriteString(quoteIdent(part))
			}
			i += end + 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func splitDataset(dataset string) (string, string) {
	dataset = strings.ReplaceAll(strings.TrimSpace(dataset), "`", "")
	if idx := strings.LastIndex(dataset, "."); idx >= 0 {
		return dataset[:idx], dataset[idx+1:]
	}
	return "", dataset
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}
