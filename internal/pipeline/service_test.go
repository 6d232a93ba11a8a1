package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/dbexec"
	"github.com/askdb/askdb/internal/nl2sql"
)

func TestAnswerRunsFullPipeline(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "```sql\nSELECT name FROM users LIMIT 2\n```"}}
	executor := &fakeExecutor{result: dbexec.Result{
		Columns:  []string{"name"},
		Rows:     [][]any{{"ada"}, {"grace"}},
		Duration: 10 * time.Millisecond,
	}}
	auditor := &fakeAuditor{}
	service := &Service{Translator: translator, Executor: executor, Auditor: auditor}

	response, err := service.Answer(context.Background(), Request{Question: "who are the users", MaxRows: 2})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if response.Statement != "SELECT name FROM users LIMIT 2;" {
		t.Fatalf("Statement = %q", response.Statement)
	}
	if executor.lastStatement != "SELECT name FROM users LIMIT 2;" {
		t.Fatalf("executed %q, want the sanitized statement", executor.lastStatement)
	}
	if response.Answer != `[{"name":"ada"},{"name":"grace"}]` {
		t.Fatalf("Answer = %q", response.Answer)
	}
	if len(auditor.records) != 1 || auditor.records[0].Status != archive.StatusAnswered {
		t.Fatalf("audit records = %+v", auditor.records)
	}
	if auditor.records[0].RowCount != 2 {
		t.Fatalf("audit RowCount = %d", auditor.records[0].RowCount)
	}
}

func TestAnswerPrependsInstructions(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT 1"}}
	executor := &fakeExecutor{result: dbexec.Result{Columns: []string{"n"}, Rows: [][]any{{1}}}}
	service := &Service{Translator: translator, Executor: executor}

	response, err := service.Answer(context.Background(), Request{
		Question:     "one",
		Instructions: "Summarize the result in one sentence.",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.HasPrefix(response.Answer, "Summarize the result in one sentence.\n") {
		t.Fatalf("Answer = %q, want directive first", response.Answer)
	}
	if !strings.HasSuffix(response.Answer, `[{"n":1}]`) {
		t.Fatalf("Answer = %q, want serialized data last", response.Answer)
	}
}

func TestAnswerAppliesDefaultRowCap(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT 1"}}
	executor := &fakeExecutor{}
	service := &Service{Translator: translator, Executor: executor}

	if _, err := service.Answer(context.Background(), Request{Question: "q"}); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if translator.lastRequest.RowCap != DefaultRowCap {
		t.Fatalf("RowCap = %d, want %d", translator.lastRequest.RowCap, DefaultRowCap)
	}

	service.DefaultRowCap = 25
	if _, err := service.Answer(context.Background(), Request{Question: "q"}); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if translator.lastRequest.RowCap != 25 {
		t.Fatalf("RowCap = %d, want configured 25", translator.lastRequest.RowCap)
	}
}

func TestGenerationFailureNeverReachesDatabase(t *testing.T) {
	translator := &fakeTranslator{err: nl2sql.ErrNoCompletion}
	executor := &fakeExecutor{}
	auditor := &fakeAuditor{}
	service := &Service{Translator: translator, Executor: executor, Auditor: auditor}

	_, err := service.Answer(context.Background(), Request{Question: "q"})
	if !errors.Is(err, nl2sql.ErrNoCompletion) {
		t.Fatalf("Answer() error = %v, want ErrNoCompletion", err)
	}
	if executor.calls != 0 {
		t.Fatalf("executor calls = %d, want 0", executor.calls)
	}
	if len(auditor.records) != 1 || auditor.records[0].Status != archive.StatusFailed {
		t.Fatalf("audit records = %+v", auditor.records)
	}
}

func TestExecutionFailureSurfacesGuidanceAndCause(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT x FROM t"}}
	executor := &fakeExecutor{err: &dbexec.ExecError{Err: errors.New("Unknown column 'x'")}}
	service := &Service{Translator: translator, Executor: executor}

	_, err := service.Answer(context.Background(), Request{Question: "q"})
	if err == nil {
		t.Fatal("expected execution failure")
	}
	var execErr *dbexec.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %T, want *dbexec.ExecError", err)
	}
	if !strings.Contains(err.Error(), "Unknown column 'x'") || !strings.Contains(err.Error(), "schema description") {
		t.Fatalf("error = %q, want guidance plus original message", err.Error())
	}
}

func TestTranslateRequiresQuestion(t *testing.T) {
	service := &Service{Translator: &fakeTranslator{}, Executor: &fakeExecutor{}}
	if _, err := service.Translate(context.Background(), Request{Question: "  "}); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestTranslateSanitizesCandidate(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "name FROM users -- fragment"}}
	service := &Service{Translator: translator, Executor: &fakeExecutor{}}

	stmt, err := service.Translate(context.Background(), Request{Question: "names"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if stmt != "SELECT name FROM users;" {
		t.Fatalf("statement = %q", stmt)
	}
}

func TestFormatAnswerEmptyRows(t *testing.T) {
	answer, err := formatAnswer("", []string{"a"}, nil)
	if err != nil {
		t.Fatalf("formatAnswer() error = %v", err)
	}
	if answer != "[]" {
		t.Fatalf("answer = %q", answer)
	}
}

type fakeTranslator struct {
	lastRequest nl2sql.Request
	result      nl2sql.Result
	err         error
}

func (f *fakeTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.lastRequest = req
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return f.result, nil
}

type fakeExecutor struct {
	lastStatement string
	calls         int
	result        dbexec.Result
	err           error
}

func (f *fakeExecutor) Query(_ context.Context, stmt string) (dbexec.Result, error) {
	f.calls++
	f.lastStatement = stmt
	if f.err != nil {
		return dbexec.Result{}, f.err
	}
	return f.result, nil
}

type fakeAuditor struct {
	records []archive.Record
}

func (f *fakeAuditor) Append(_ context.Context, record archive.Record) {
	f.records = append(f.records, record)
}
