package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/natalis/natalis/internal/llm"
	"github.com/natalis/natalis/internal/observability"
	"github.com/natalis/natalis/internal/schema"
)

const (
	// RepresentativeYear is assumed when the question names no year.
	RepresentativeYear = 2005
	// DeniedColumn is an internal partition column of the public tables.
	DeniedColumn = "_DATA_DATE"
)

type Synthesizer struct {
	generator llm.Generator
	decoding  llm.Decoding
	model     string
	logger    *slog.Logger
}

func NewSynthesizer(generator llm.Generator, decoding llm.Decoding, logger *slog.Logger) *Synthesizer {
	s := &Synthesizer{
		generator: generator,
		decoding:  decoding,
		logger:    observability.Component(logger, "nl2sql"),
	}
	if named, ok := generator.(interface{ Model() string }); ok {
		s.model = named.Model()
	}
	return s
}

// Translate is Synthesize under the Translator contract.
func (s *Synthesizer) Translate(ctx context.Context, req Request) (Result, error) {
	return s.Synthesize(ctx, req)
}

func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("%w: question is required", ErrSynthesis)
	}
	if s.generator == nil {
		return Result{}, fmt.Errorf("%w: generator is not configured", ErrSynthesis)
	}

	start := time.Now()
	raw, err := s.generator.Generate(ctx, BuildPrompt(req), s.decoding)
	observability.ObserveLLMCall("synthesize", err, time.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "sql synthesis failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.Any("error", err),
		)
		return Result{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	sql := StripCodeFence(raw)
	if sql == "" {
		return Result{}, fmt.Errorf("%w: model returned empty SQL", ErrSynthesis)
	}
	s.logger.DebugContext(ctx, "sql synthesized",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("sql", sql),
		slog.String("duration", time.Since(start).String()),
	)
	return Result{SQL: sql, Model: s.model}, nil
}

func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a public health data analyst specialized in United States natality statistics.\n")
	b.WriteString("Your task is to turn questions about birth data into BigQuery SQL queries.\n\n")

	b.WriteString("AVAILABLE TABLES:\n")
	b.WriteString(strings.Join(req.Tables, "\n"))
	b.WriteString("\n\nTABLE STRUCTURE:\n")
	b.WriteString(strings.Join(req.SchemaContext, "\n"))

	example := "bigquery-public-data.samples.natality"
	if len(req.Tables) > 0 {
		example = strings.ReplaceAll(req.Tables[0], "`", "")
	}
	b.WriteString("\nRULES:\n")
	fmt.Fprintf(&b, "- CRITICAL: the natality table holds HISTORICAL data for the years %d to %d only.\n", schema.FirstCoveredYear, schema.LastCoveredYear)
	fmt.Fprintf(&b, "  A question about a year outside that range (e.g. 2020, 2024) returns no rows. Avoid filters on years after %d.\n", schema.LastCoveredYear)
	fmt.Fprintf(&b, "  If the user gives no year, assume the historical range or a representative year such as %d.\n", RepresentativeYear)
	b.WriteString("- Always use BigQuery standard SQL syntax.\n")
	fmt.Fprintf(&b, "- Always wrap the fully qualified table name in backticks, for example: `%s`.\n", example)
	b.WriteString("- Key columns for analysis are `weight_pounds`, `mother_age`, `gestation_weeks`, `state`, `year`.\n")
	fmt.Fprintf(&b, "- NEVER use the `%s` column, even if it is present.\n", DeniedColumn)

	b.WriteString("\nUSER QUESTION: ")
	b.WriteString(req.Question)
	b.WriteString("\n\nRespond ONLY with the SQL code, without any additional explanation.\n")
	return b.String()
}

// StripCodeFence recovers bare SQL from a model reply wrapped in a markdown
// code block. Clean input is returned unchanged.
func StripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	switch {
	case hasPrefixFold(trimmed, "```sql"):
		trimmed = trimmed[len("```sql"):]
	case strings.HasPrefix(trimmed, "```"):
		trimmed = strings.TrimPrefix(trimmed, "```")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func hasPrefixFold(value, prefix string) bool {
	return len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix)
}
