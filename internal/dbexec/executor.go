package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SessionExecutor runs each statement on its own connection checked out from
// the pool, released on every exit path.
type SessionExecutor struct {
	db *sql.DB
}

func NewSessionExecutor(db *sql.DB) *SessionExecutor {
	return &SessionExecutor{db: db}
}

func (e *SessionExecutor) Query(ctx context.Context, stmt string) (Result, error) {
	if strings.TrimSpace(stmt) == "" {
		return Result{}, fmt.Errorf("statement is required")
	}
	if e.db == nil {
		return Result{}, fmt.Errorf("database is required")
	}

	start := time.Now()
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire session: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, &ExecError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, &ExecError{Err: err}
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// normalizeValues rewrites driver byte slices into strings so rows marshal as
// text instead of base64.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
