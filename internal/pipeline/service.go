// Package pipeline runs one question through translation, the guardrail,
// execution, and formatting. One request is one linear pass; nothing is
// retried and nothing outlives the request.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/dbexec"
	"github.com/askdb/askdb/internal/guardrail"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
)

// DefaultRowCap bounds results when the caller does not ask for a cap.
const DefaultRowCap = 100

// Request is one question from the caller.
type Request struct {
	Question     string
	Schema       string
	Instructions string
	MaxRows      int
}

// Response carries the formatted answer plus the statement and data it came
// from.
type Response struct {
	Answer    string
	Statement string
	Columns   []string
	Rows      [][]any
	Duration  time.Duration
}

// Auditor records answered and failed questions. Implementations must never
// fail the request.
type Auditor interface {
	Append(ctx context.Context, record archive.Record)
}

type Service struct {
	Translator    nl2sql.Translator
	Executor      dbexec.Executor
	Auditor       Auditor // optional
	Logger        *slog.Logger
	DefaultRowCap int
}

// Answer runs the full pipeline. A translation failure aborts before the
// database is ever contacted; an execution failure surfaces the database's
// message with guidance. Neither is retried.
func (s *Service) Answer(ctx context.Context, req Request) (Response, error) {
	stmt, err := s.Translate(ctx, req)
	if err != nil {
		s.audit(ctx, req.Question, stmt, nil, 0, err)
		return Response{}, err
	}

	result, err := s.Executor.Query(ctx, stmt)
	if err != nil {
		s.audit(ctx, req.Question, stmt, nil, 0, err)
		return Response{}, err
	}
	observability.ObserveQueryDuration(result.Duration)

	answer, err := formatAnswer(req.Instructions, result.Columns, result.Rows)
	if err != nil {
		return Response{}, err
	}

	observability.IncrementQuestionsAnswered()
	s.audit(ctx, req.Question, stmt, result.Rows, result.Duration, nil)
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "question_answered",
			slog.String("statement", stmt),
			slog.Int("rows", len(result.Rows)),
			slog.String("duration", result.Duration.String()),
		)
	}

	return Response{
		Answer:    answer,
		Statement: stmt,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Duration:  result.Duration,
	}, nil
}

// Translate produces the safe statement without touching the database.
func (s *Service) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", fmt.Errorf("question is required")
	}
	rowCap := req.MaxRows
	if rowCap < 1 {
		rowCap = s.rowCap()
	}

	result, err := s.Translator.Translate(ctx, nl2sql.Request{
		Question: req.Question,
		Schema:   req.Schema,
		RowCap:   rowCap,
	})
	if err != nil {
		observability.ObserveTranslation("error")
		return "", fmt.Errorf("translate question: %w", err)
	}
	observability.ObserveTranslation("ok")

	outcome := guardrail.Apply(result.SQL)
	if outcome.Coerced {
		observability.IncrementGuardrailCoercion()
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "guardrail coerced candidate",
				slog.String("candidate", result.SQL),
			)
		}
	}
	return outcome.Statement, nil
}

func (s *Service) rowCap() int {
	if s.DefaultRowCap > 0 {
		return s.DefaultRowCap
	}
	return DefaultRowCap
}

func (s *Service) audit(ctx context.Context, question, stmt string, rows [][]any, duration time.Duration, cause error) {
	if s.Auditor == nil {
		return
	}
	record := archive.Record{
		AskedAtUnixMs: time.Now().UnixMilli(),
		Question:      question,
		Statement:     stmt,
		RowCount:      int64(len(rows)),
		DurationMs:    duration.Milliseconds(),
		Status:        archive.StatusAnswered,
	}
	if cause != nil {
		record.Status = archive.StatusFailed
		record.ErrorText = cause.Error()
	}
	s.Auditor.Append(ctx, record)
}
