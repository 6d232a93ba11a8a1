package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAITranslator calls an OpenAI-compatible chat-completions endpoint.
// Sampling temperature is pinned to zero so repeated questions produce the
// same statement as far as the provider allows.
type OpenAITranslator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAITranslator{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	if req.RowCap < 1 {
		return Result{}, fmt.Errorf("row cap must be at least 1, got %d", req.RowCap)
	}

	body, err := json.Marshal(buildChatPayload(t.model, req))
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Result{}, ErrNoCompletion
	}

	return Result{
		SQL:      parsed.Choices[0].Message.Content,
		Provider: "openai-compatible",
		Model:    t.model,
	}, nil
}

func buildChatPayload(model string, req Request) map[string]any {
	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemInstruction(req)},
			{"role": "user", "content": strings.TrimSpace(req.Question)},
		},
		"temperature": 0,
	}
}

func buildSystemInstruction(req Request) string {
	var b strings.Builder
	b.WriteString("You translate natural language questions into SQL for a relational database.\n")
	b.WriteString("Hard rules:\n")
	b.WriteString("- Generate only SELECT statements. Never generate INSERT, UPDATE, DELETE, or any DDL.\n")
	b.WriteString("- Never invent column names. If no schema is given and the question asks for all fields, use SELECT * instead of guessing columns.\n")
	b.WriteString("- Join tables only when the schema description explicitly states a relationship between them.\n")
	b.WriteString("- When the question asks for a random sample, use ORDER BY RAND().\n")
	b.WriteString("- Always bound the result with LIMIT " + strconv.Itoa(req.RowCap) + ".\n")
	b.WriteString("- Respond with raw SQL only. No markdown fences, no explanation.\n")
	if schema := strings.TrimSpace(req.Schema); schema != "" {
		b.WriteString("\nDatabase schema:\n")
		b.WriteString(schema)
		b.WriteString("\n")
	} else {
		b.WriteString("\nNo schema description is available.\n")
	}
	return b.String()
}
