package nl2sql

import (
	"context"
	"errors"
)

// ErrSynthesis marks a question that produced no usable SQL.
var ErrSynthesis = errors.New("nl2sql: no SQL produced")

type Request struct {
	Question string `json:"question"`
	// Tables holds fully qualified identifiers, e.g. bigquery-public-data.samples.natality.
	Tables []string `json:"tables"`
	// SchemaContext holds the rendered grounding blocks, embedded verbatim.
	SchemaContext []string `json:"schema_context"`
}

type Result struct {
	SQL   string `json:"sql"`
	Model string `json:"model,omitempty"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
