// Package dbexec executes a sanitized statement against the target database.
// It runs exactly the text it is handed and nothing else; all rewriting
// happens upstream in the guardrail.
package dbexec

import (
	"context"
	"fmt"
	"time"
)

// Result is the ordered outcome of one statement.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

type Executor interface {
	Query(ctx context.Context, stmt string) (Result, error)
}

// ExecError wraps a database rejection with guidance for the caller. Query
// correctness failures are user-facing and never retried.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("query execution failed: %v. Provide a schema description or verify that the referenced table and column names exist.", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
