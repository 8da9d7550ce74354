package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/natalis/natalis/internal/observability"
	"github.com/natalis/natalis/internal/warehouse"
)

type Kind string

const (
	KindRows  Kind = "rows"
	KindEmpty Kind = "empty"
	KindError Kind = "error"
)

// Outcome is what one submitted query produced. Table is set for rows and
// empty outcomes, Message only for errors.
type Outcome struct {
	Kind     Kind
	Table    warehouse.Table
	Message  string
	Duration time.Duration
}

func Rows(table warehouse.Table) Outcome {
	return Outcome{Kind: KindRows, Table: table}
}

func Empty() Outcome {
	return Outcome{Kind: KindEmpty}
}

func Failed(message string) Outcome {
	return Outcome{Kind: KindError, Message: message}
}

type Executor struct {
	client  warehouse.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor returns an executor bounding each query by timeout; zero means
// the caller's context alone decides.
func NewExecutor(client warehouse.Client, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{client: client, timeout: timeout, logger: observability.Component(logger, "query")}
}

// Execute submits sql verbatim and classifies the result. Engine failures
// become error outcomes and are never returned.
func (e *Executor) Execute(ctx context.Context, sql string) Outcome {
	start := time.Now()
	outcome := e.execute(ctx, sql)
	outcome.Duration = time.Since(start)
	observability.ObserveQuery(string(outcome.Kind), outcome.Duration)

	attrs := []any{
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("outcome", string(outcome.Kind)),
		slog.Int("rows", outcome.Table.NumRows()),
		slog.String("duration", outcome.Duration.String()),
	}
	if outcome.Kind == KindError {
		e.logger.WarnContext(ctx, "query failed", append(attrs, slog.String("error", outcome.Message))...)
	} else {
		e.logger.InfoContext(ctx, "query executed", attrs...)
	}
	return outcome
}

func (e *Executor) execute(ctx context.Context, sql string) Outcome {
	if e.client == nil {
		return Failed("warehouse client is not configured")
	}
	if strings.TrimSpace(sql) == "" {
		return Failed("sql is required")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	table, err := e.client.Query(ctx, sql)
	if err != nil {
		return Failed(err.Error())
	}
	if table.NumRows() == 0 {
		outcome := Empty()
		outcome.Table = table
		return outcome
	}
	return Rows(table)
}
