package explain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/natalis/natalis/internal/llm"
	"github.com/natalis/natalis/internal/observability"
	"github.com/natalis/natalis/internal/query"
	"github.com/natalis/natalis/internal/schema"
)

// FallbackMessage replaces the explanation whenever the model call fails.
const FallbackMessage = "Error generating the analysis of the results."

var yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|2\d{3})\b`)

type Explainer struct {
	generator llm.Generator
	decoding  llm.Decoding
	logger    *slog.Logger
}

func NewExplainer(generator llm.Generator, decoding llm.Decoding, logger *slog.Logger) *Explainer {
	return &Explainer{generator: generator, decoding: decoding, logger: observability.Component(logger, "explain")}
}

// Explain never fails: a model error is logged and FallbackMessage returned.
// Error outcomes are not explained and yield an empty string.
func (e *Explainer) Explain(ctx context.Context, question, sql string, outcome query.Outcome) string {
	var prompt string
	switch outcome.Kind {
	case query.KindEmpty:
		prompt = EmptyPrompt(question, sql)
	case query.KindRows:
		prompt = RowsPrompt(question, outcome)
	default:
		return ""
	}
	if e.generator == nil {
		e.logger.ErrorContext(ctx, "explanation skipped: generator is not configured")
		return FallbackMessage
	}

	start := time.Now()
	text, err := e.generator.Generate(ctx, prompt, e.decoding)
	observability.ObserveLLMCall("explain", err, time.Since(start))
	if err != nil {
		e.logger.ErrorContext(ctx, "explanation failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("outcome", string(outcome.Kind)),
			slog.Any("error", err),
		)
		return FallbackMessage
	}
	return strings.TrimSpace(text)
}

func EmptyPrompt(question, sql string) string {
	var b strings.Builder
	b.WriteString("You are a public health data analyst specialized in United States natality statistics.\n")
	b.WriteString("The user's query ran successfully but returned NO results.\n\n")
	fmt.Fprintf(&b, "ORIGINAL QUESTION: %s\n\n", question)
	fmt.Fprintf(&b, "SQL QUERY EXECUTED:\n```sql\n%s\n```\n\n", sql)

	b.WriteString("Explain to the user why there are no results. The most likely causes are:\n")
	fmt.Fprintf(&b, "1. The question asks about a year after %d. The natality data is HISTORICAL and only covers %d to %d.\n",
		schema.LastCoveredYear, schema.FirstCoveredYear, schema.LastCoveredYear)
	b.WriteString("2. The filters are too specific and no records match them.\n\n")
	if years := UncoveredYears(question); len(years) > 0 {
		fmt.Fprintf(&b, "NOTE: the question mentions %s, outside the %d-%d coverage of the dataset. Say so explicitly.\n\n",
			joinYears(years), schema.FirstCoveredYear, schema.LastCoveredYear)
	}
	b.WriteString("INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- If the query filters on a year after %d, clearly state that the data only covers %d-%d.\n",
		schema.LastCoveredYear, schema.FirstCoveredYear, schema.LastCoveredYear)
	fmt.Fprintf(&b, "- Suggest how to rephrase the question, for example using years between 2000 and %d or looser filters.\n", schema.LastCoveredYear)
	b.WriteString("- Be friendly and helpful.\n")
	b.WriteString("- Do NOT say the query is wrong or erroneous; it ran correctly but found no matching data.\n")
	return b.String()
}

func RowsPrompt(question string, outcome query.Outcome) string {
	var b strings.Builder
	b.WriteString("You are a public health data analyst specialized in United States natality statistics.\n")
	b.WriteString("Answer the user's question using the query results below.\n\n")
	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)
	fmt.Fprintf(&b, "RESULTS:\n```\n%s\n```\n\n", outcome.Table.Format())

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("- Adapt the depth of the answer to the question.\n")
	b.WriteString("- For a direct factual question (a count, an average, a single value), answer concisely with the value.\n")
	b.WriteString("- For a comparative or trend question, give 1 or 2 key insights, point out notable patterns and end with a brief conclusion.\n")
	b.WriteString("- Use clear language. Lists and bold text are allowed.\n")
	return b.String()
}

// UncoveredYears returns the four digit years named in question that fall
// outside the dataset coverage, in order of appearance.
func UncoveredYears(question string) []int {
	var years []int
	seen := map[int]bool{}
	for _, match := range yearPattern.FindAllString(question, -1) {
		year, err := strconv.Atoi(match)
		if err != nil || schema.Covered(year) || seen[year] {
			continue
		}
		seen[year] = true
		years = append(years, year)
	}
	return years
}

func joinYears(years []int) string {
	parts := make([]string, 0, len(years))
	for _, year := range years {
		parts = append(parts, strconv.Itoa(year))
	}
	return strings.Join(parts, ", ")
}
