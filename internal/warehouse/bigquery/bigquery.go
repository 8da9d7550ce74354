package bigquery

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/viant/bigquery"

	"github.com/natalis/natalis/internal/warehouse"
	"github.com/natalis/natalis/internal/warehouse/sqldb"
)

const driverName = "bigquery"

type Config struct {
	// ProjectID is the billing project queries run under.
	ProjectID string
	Location  string
	// Dataset may be qualified with its host project, e.g. bigquery-public-data.samples.
	Dataset         string
	CredentialsFile string
}

func DSN(cfg Config) (string, error) {
	project := strings.TrimSpace(cfg.ProjectID)
	if project == "" {
		return "", fmt.Errorf("bigquery project id is required")
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if idx := strings.LastIndex(dataset, "."); idx >= 0 {
		dataset = dataset[idx+1:]
	}
	if dataset == "" {
		return "", fmt.Errorf("bigquery dataset is required")
	}

	dsn := "bigquery://" + project
	if location := strings.TrimSpace(cfg.Location); location != "" {
		dsn += "/" + location
	}
	dsn += "/" + dataset
	if credentials := strings.TrimSpace(cfg.CredentialsFile); credentials != "" {
		dsn += "?credURL=" + url.QueryEscape(credentials)
	}
	return dsn, nil
}

func Open(ctx context.Context, cfg Config) (*sqldb.Client, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", warehouse.ErrConnection, err)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open bigquery: %w", warehouse.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping bigquery: %w", warehouse.ErrConnection, err)
	}
	return sqldb.New(db, sqldb.BigQuery), nil
}
