package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/dbexec"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/pipeline"
)

type askRequest struct {
	Question     string `json:"question"`
	Schema       string `json:"schema"`
	Instructions string `json:"instructions"`
	MaxRows      int    `json:"max_rows"`
}

type askResponse struct {
	Answer  string         `json:"answer"`
	SQL     string         `json:"sql"`
	Columns []string       `json:"columns"`
	Rows    [][]any        `json:"rows"`
	Stats   map[string]any `json:"stats"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeAskRequest(deps, w, r)
	if !ok {
		return
	}

	response, err := deps.Pipeline.Answer(r.Context(), pipeline.Request{
		Question:     request.Question,
		Schema:       request.Schema,
		Instructions: request.Instructions,
		MaxRows:      request.MaxRows,
	})
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:  response.Answer,
		SQL:     response.Statement,
		Columns: response.Columns,
		Rows:    response.Rows,
		Stats: map[string]any{
			"row_count":   len(response.Rows),
			"duration_ms": response.Duration.Milliseconds(),
		},
	})
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeAskRequest(deps, w, r)
	if !ok {
		return
	}

	stmt, err := deps.Pipeline.Translate(r.Context(), pipeline.Request{
		Question: request.Question,
		Schema:   request.Schema,
		MaxRows:  request.MaxRows,
	})
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sql": stmt})
}

func decodeAskRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return askRequest{}, false
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return askRequest{}, false
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return askRequest{}, false
	}
	if request.MaxRows < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "MAX_ROWS_INVALID", "max_rows must be at least 1 when set", false, nil)
		return askRequest{}, false
	}
	return request, true
}

func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var execErr *dbexec.ExecError
	switch {
	case errors.Is(err, nl2sql.ErrNoCompletion):
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", err.Error(), false, nil)
	case errors.As(err, &execErr):
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", err.Error(), false, nil)
	case strings.Contains(err.Error(), "question is required"):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", err.Error(), true, nil)
	}
}
