package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/groq"
)

type groqFormatter struct {
	client       *groq.Client
	model        string
	temperature  float64
	systemPrompt string
}

// NewGroqFormatter builds a Formatter against the Groq chat completions
// endpoint.
func NewGroqFormatter(cfg config.APIConfig) Formatter {
	return &groqFormatter{
		client:       groq.NewClient(cfg),
		model:        cfg.ChatModel,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	groq.ErrorEnvelope
}

func (f *groqFormatter) Format(ctx context.Context, raw, correctionsContext string) (string, error) {
	system := f.systemPrompt
	if correctionsContext != "" {
		system += correctionsContext
	}

	payload := chatRequest{
		Model: f.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: raw},
		},
		Temperature: f.temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := f.client.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	f.client.Authorize(req)

	resp, err := f.client.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if apiErr := decoded.AsError(); apiErr != nil {
		return "", apiErr
	}
	if resp.StatusCode >= 300 {
		return "", &groq.Error{Message: fmt.Sprintf("chat endpoint returned %s", resp.Status)}
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
