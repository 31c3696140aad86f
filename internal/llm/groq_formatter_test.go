package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/groq"
)

func testAPIConfig(baseURL string) config.APIConfig {
	return config.APIConfig{
		Key:          "test-key",
		BaseURL:      baseURL,
		ChatModel:    "llama-3.3-70b-versatile",
		Temperature:  0.1,
		SystemPrompt: "Format the dictated text.",
		TimeoutMS:    5000,
	}
}

func TestFormatSuccess(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Hallo, das ist ein Test."}}]}`))
	}))
	defer srv.Close()

	f := NewGroqFormatter(testAPIConfig(srv.URL))
	out, err := f.Format(context.Background(), "hallo das ist ein test", "")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if out != "Hallo, das ist ein Test." {
		t.Fatalf("unexpected content: %q", out)
	}
	if got.Model != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected model: %q", got.Model)
	}
	if got.Temperature != 0.1 {
		t.Fatalf("unexpected temperature: %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected message layout: %+v", got.Messages)
	}
	if got.Messages[1].Content != "hallo das ist ein test" {
		t.Fatalf("raw transcript must be the user message, got %q", got.Messages[1].Content)
	}
}

func TestFormatAppendsCorrectionsContext(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	corrections := "\n\nUser correction patterns:\n- When transcribed as \"flustern\", the user meant: \"Flüstern\""
	f := NewGroqFormatter(testAPIConfig(srv.URL))
	if _, err := f.Format(context.Background(), "text", corrections); err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.HasSuffix(got.Messages[0].Content, corrections) {
		t.Fatalf("expected corrections appended to system prompt, got %q", got.Messages[0].Content)
	}
}

func TestFormatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	f := NewGroqFormatter(testAPIConfig(srv.URL))
	_, err := f.Format(context.Background(), "text", "")
	var apiErr *groq.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *groq.Error, got %v", err)
	}
	if apiErr.Message != "rate_limit_exceeded" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestFormatEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	f := NewGroqFormatter(testAPIConfig(srv.URL))
	_, err := f.Format(context.Background(), "text", "")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}
