// Package nl2sql turns natural language questions into candidate SQL
// statements. Candidates are untrusted model output; sanitization belongs to
// the guardrail, never to the translator.
package nl2sql

import (
	"context"
	"errors"
)

// ErrNoCompletion signals that the model returned no usable SQL text. The
// request is over at that point; callers must not retry and must not contact
// the database.
var ErrNoCompletion = errors.New("model returned no usable SQL text")

// Request carries one question bound for translation.
type Request struct {
	// Question is the natural language question. Required.
	Question string

	// Schema is an optional human-authored description of tables, columns,
	// and relationships. Empty means no schema is available and the model is
	// told to prefer SELECT * over invented column names.
	Schema string

	// RowCap is the LIMIT the generated statement must carry.
	RowCap int
}

// Result is the raw candidate produced by the model, exactly as returned.
type Result struct {
	SQL      string
	Provider string
	Model    string
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
