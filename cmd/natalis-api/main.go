package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/natalis/natalis/internal/api"
	"github.com/natalis/natalis/internal/chat"
	"github.com/natalis/natalis/internal/config"
	"github.com/natalis/natalis/internal/llm"
	"github.com/natalis/natalis/internal/observability"
	"github.com/natalis/natalis/internal/query"
	"github.com/natalis/natalis/internal/schema"
	"github.com/natalis/natalis/internal/session"
	sessionpostgres "github.com/natalis/natalis/internal/session/postgres"
	s3store "github.com/natalis/natalis/internal/storage/s3"
	"github.com/natalis/natalis/internal/warehouse"
	"github.com/natalis/natalis/internal/warehouse/bigquery"
	"github.com/natalis/natalis/internal/warehouse/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("natalis-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	client, err := openWarehouse(startupCtx, cfg)
	if err != nil {
		logger.Error("failed to connect to warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	catalog := schema.Default()
	tables := availableTables(startupCtx, logger, client, cfg.Warehouse.Dataset, catalog)
	schemaContext := catalog.Context(tables)

	decoding := llm.DeterministicDecoding(cfg.AI.MaxOutputTokens)
	models := llm.OpenAIFactory{Config: llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}}
	orchestrator, err := chat.NewOrchestrator(chat.OrchestratorConfig{
		Factory:       models,
		Executor:      query.NewExecutor(client, cfg.Warehouse.QueryTimeout, logger),
		Tables:        tables,
		SchemaContext: schemaContext,
		Decoding:      decoding,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to build orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		sessions  session.Store
		readiness []api.ReadinessCheck
	)
	switch cfg.Sessions.Driver {
	case config.SessionsPostgres:
		db, err := sessionpostgres.Open(startupCtx, cfg.Sessions)
		if err != nil {
			logger.Error("failed to open session db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		store := sessionpostgres.NewStore(db)
		sessions = store
		readiness = append(readiness, store.HealthCheck)
	default:
		sessions = session.NewMemoryStore()
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		Sessions:          sessions,
		Turns:             orchestrator,
		Models:            models,
		Decoding:          decoding,
		Tables:            orchestrator.Tables(),
		SchemaContext:     orchestrator.SchemaContext(),
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.Any("tables", tables))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openWarehouse(ctx context.Context, cfg config.Config) (warehouse.Client, error) {
	switch cfg.Warehouse.Driver {
	case config.WarehouseDuckDB:
		objects, err := config.ParseObjectMap(cfg.Warehouse.DuckDBObjects)
		if err != nil {
			return nil, err
		}
		store, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		client, err := duckdb.Open(ctx, store, duckdb.Config{Dataset: cfg.Warehouse.Dataset, Objects: objects})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := bigquery.Open(ctx, bigquery.Config{
			ProjectID:       cfg.Warehouse.ProjectID,
			Location:        cfg.Warehouse.Location,
			Dataset:         cfg.Warehouse.Dataset,
			CredentialsFile: cfg.Warehouse.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// availableTables keeps the listed tables the catalog can describe. When
// listing fails or yields nothing known, the catalog's own tables are
// qualified with the dataset instead.
func availableTables(ctx context.Context, logger *slog.Logger, client warehouse.Client, dataset string, catalog *schema.Catalog) []string {
	listed, err := client.ListTables(ctx, dataset)
	if err != nil {
		logger.Warn("failed to list warehouse tables", slog.Any("error", err))
	}
	known := make([]string, 0, len(listed))
	for _, ref := range listed {
		if _, err := catalog.Describe(ref); err == nil {
			known = append(known, ref)
		}
	}
	if len(known) > 0 {
		return known
	}
	for _, table := range catalog.Tables() {
		known = append(known, dataset+"."+table.ID)
	}
	return known
}
