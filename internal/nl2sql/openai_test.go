package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranslateSendsConstrainedPrompt(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SELECT name FROM users LIMIT 10"}}]}`))
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "key-1", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}

	result, err := translator.Translate(context.Background(), Request{
		Question: "list user names",
		Schema:   "users(id, name); orders(id, user_id) references users.id",
		RowCap:   10,
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.SQL != "SELECT name FROM users LIMIT 10" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if result.Model != "test-model" {
		t.Fatalf("Model = %q", result.Model)
	}

	if temp, ok := captured["temperature"].(float64); !ok || temp != 0 {
		t.Fatalf("temperature = %v, want 0", captured["temperature"])
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	system := messages[0].(map[string]any)["content"].(string)
	for _, rule := range []string{
		"only SELECT statements",
		"Never invent column names",
		"explicitly states a relationship",
		"ORDER BY RAND()",
		"LIMIT 10",
		"raw SQL only",
		"orders(id, user_id) references users.id",
	} {
		if !strings.Contains(system, rule) {
			t.Fatalf("system instruction missing %q:\n%s", rule, system)
		}
	}
	user := messages[1].(map[string]any)["content"].(string)
	if user != "list user names" {
		t.Fatalf("user message = %q", user)
	}
}

func TestTranslateWithoutSchemaStatesTheSentinel(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SELECT * FROM t LIMIT 100"}}]}`))
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "key-1"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if _, err := translator.Translate(context.Background(), Request{Question: "all fields", RowCap: 100}); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	system := captured["messages"].([]any)[0].(map[string]any)["content"].(string)
	if !strings.Contains(system, "No schema description is available") {
		t.Fatalf("system instruction missing no-schema sentinel:\n%s", system)
	}
}

func TestTranslateReturnsCandidateUntouched(t *testing.T) {
	fenced := "```sql\nSELECT 1;\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": fenced}}},
		})
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "key-1"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), Request{Question: "q", RowCap: 1})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.SQL != fenced {
		t.Fatalf("SQL = %q, want the raw fenced candidate", result.SQL)
	}
}

func TestTranslateEmptyContentIsNoCompletion(t *testing.T) {
	responses := []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":""}}]}`,
		`{"choices":[{"message":{"content":"   \n"}}]}`,
	}
	for _, body := range responses {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "key-1"})
		if err != nil {
			t.Fatalf("NewOpenAITranslator() error = %v", err)
		}
		_, err = translator.Translate(context.Background(), Request{Question: "q", RowCap: 1})
		if !errors.Is(err, ErrNoCompletion) {
			t.Fatalf("Translate() with body %s error = %v, want ErrNoCompletion", body, err)
		}
		server.Close()
	}
}

func TestTranslateRejectsBadInput(t *testing.T) {
	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: "http://localhost:0", APIKey: "key-1"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if _, err := translator.Translate(context.Background(), Request{Question: " ", RowCap: 10}); err == nil {
		t.Fatal("expected error for empty question")
	}
	if _, err := translator.Translate(context.Background(), Request{Question: "q", RowCap: 0}); err == nil {
		t.Fatal("expected error for zero row cap")
	}
}

func TestNewOpenAITranslatorValidatesConfig(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAITranslator(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
