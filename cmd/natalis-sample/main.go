package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/natalis/natalis/internal/config"
	"github.com/natalis/natalis/internal/observability"
	"github.com/natalis/natalis/internal/sample"
	"github.com/natalis/natalis/internal/storage"
	s3store "github.com/natalis/natalis/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("natalis-sample")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	key := flag.String("key", "", "object key of the parquet extract, derived from -prefix and -table when empty")
	table := flag.String("table", cfg.Sample.Table, "table the extract stands in for")
	prefix := flag.String("prefix", cfg.Sample.Prefix, "key prefix of the extract")
	records := flag.Int("records", cfg.Sample.Records, "number of records to generate")
	seed := flag.Int64("seed", cfg.Sample.Seed, "generator seed")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)

	objectKey := *key
	switch {
	case objectKey != "":
	case *table == cfg.Sample.Table && *prefix == cfg.Sample.Prefix:
		objectKey = cfg.Sample.ObjectKey
	default:
		objectKey, err = storage.ExtractKey(*prefix, *table)
		if err != nil {
			logger.Error("invalid extract name", slog.Any("error", err))
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := s3store.New(ctx, cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	info, err := sample.Publish(ctx, store, objectKey, *records, *seed)
	if err != nil {
		logger.Error("failed to publish sample extract", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("sample extract published",
		slog.String("bucket", store.Bucket()),
		slog.String("table", *table),
		slog.String("key", info.Key),
		slog.Int64("size_bytes", info.Size),
		slog.Int("records", *records),
		slog.Int64("seed", *seed),
	)
}
