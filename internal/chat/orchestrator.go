package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/natalis/natalis/internal/chart"
	"github.com/natalis/natalis/internal/explain"
	"github.com/natalis/natalis/internal/llm"
	"github.com/natalis/natalis/internal/nl2sql"
	"github.com/natalis/natalis/internal/observability"
	"github.com/natalis/natalis/internal/query"
)

const (
	MessageCredentialMissing = "Please provide a language model API key to continue."
	MessageModelInit         = "The language model could not be initialized. Check the API key and try again."
	MessageSynthesis         = "I could not turn that question into a query. Please try rephrasing it."
	MessageExecution         = "The query could not be executed: %s\n\nPlease check the syntax or try rephrasing your question."
	MessageEmpty             = "The query executed correctly, but no data was found for your question.\n\n**AI assistant analysis:**\n\n%s"
)

type Executor interface {
	Execute(ctx context.Context, sql string) query.Outcome
}

type OrchestratorConfig struct {
	Factory  llm.Factory
	Executor Executor
	// Tables and SchemaContext ground every synthesized query.
	Tables        []string
	SchemaContext []string
	Decoding      llm.Decoding
	Logger        *slog.Logger
}

// Orchestrator runs one question through synthesis, execution, explanation
// and chart selection. Every failure becomes an assistant turn.
type Orchestrator struct {
	factory       llm.Factory
	executor      Executor
	tables        []string
	schemaContext []string
	decoding      llm.Decoding
	logger        *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("model factory is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	return &Orchestrator{
		factory:       cfg.Factory,
		executor:      cfg.Executor,
		tables:        append([]string(nil), cfg.Tables...),
		schemaContext: append([]string(nil), cfg.SchemaContext...),
		decoding:      cfg.Decoding,
		logger:        observability.Component(cfg.Logger, "chat"),
	}, nil
}

func (o *Orchestrator) Tables() []string {
	return append([]string(nil), o.tables...)
}

func (o *Orchestrator) SchemaContext() []string {
	return append([]string(nil), o.schemaContext...)
}

func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) Turn {
	start := time.Now()
	turn := o.handle(ctx, req)
	turn.Role = RoleAssistant
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	observability.ObserveTurn(string(turn.Status), time.Since(start))
	o.logger.InfoContext(ctx, "turn handled",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("status", string(turn.Status)),
		slog.Bool("chart", turn.Chart != nil),
		slog.String("duration", time.Since(start).String()),
	)
	return turn
}

func (o *Orchestrator) handle(ctx context.Context, req TurnRequest) Turn {
	if strings.TrimSpace(req.APIKey) == "" {
		return Turn{Status: StatusCredentialMissing, Text: MessageCredentialMissing}
	}

	generator, err := o.factory.New(req.APIKey)
	if err != nil {
		o.logger.ErrorContext(ctx, "model initialization failed", slog.Any("error", err))
		return Turn{Status: StatusModelInitError, Text: MessageModelInit}
	}

	synthesized, err := nl2sql.NewSynthesizer(generator, o.decoding, o.logger).Synthesize(ctx, nl2sql.Request{
		Question:      req.Question,
		Tables:        o.tables,
		SchemaContext: o.schemaContext,
	})
	if err != nil {
		return Turn{Status: StatusSynthesisError, Text: MessageSynthesis}
	}
	sql := synthesized.SQL

	outcome := o.executor.Execute(ctx, sql)
	explainer := explain.NewExplainer(generator, o.decoding, o.logger)
	switch outcome.Kind {
	case query.KindError:
		return Turn{Status: StatusExecutionError, Text: fmt.Sprintf(MessageExecution, outcome.Message), SQL: sql}
	case query.KindEmpty:
		text := explainer.Explain(ctx, req.Question, sql, outcome)
		return Turn{Status: StatusEmpty, Text: fmt.Sprintf(MessageEmpty, text), SQL: sql}
	}

	var (
		spec *chart.Spec
		text string
		wg   conc.WaitGroup
	)
	wg.Go(func() { spec = chart.Select(outcome.Table) })
	wg.Go(func() { text = explainer.Explain(ctx, req.Question, sql, outcome) })
	wg.Wait()

	table := outcome.Table
	return Turn{Status: StatusOK, Text: text, Table: &table, Chart: spec, SQL: sql}
}
