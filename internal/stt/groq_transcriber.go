package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/groq"
)

type groqTranscriber struct {
	client *groq.Client
	model  string
}

// NewGroqTranscriber builds a Transcriber against the Groq-hosted Whisper
// transcription endpoint.
func NewGroqTranscriber(cfg config.APIConfig) Transcriber {
	return &groqTranscriber{
		client: groq.NewClient(cfg),
		model:  cfg.TranscriptionModel,
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
	groq.ErrorEnvelope
}

func (t *groqTranscriber) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("copy audio into form: %w", err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return Result{}, fmt.Errorf("write model field: %w", err)
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return Result{}, fmt.Errorf("write response_format field: %w", err)
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return Result{}, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize form: %w", err)
	}

	url := t.client.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Result{}, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	t.client.Authorize(req)

	resp, err := t.client.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}
	if apiErr := decoded.AsError(); apiErr != nil {
		return Result{}, apiErr
	}
	if resp.StatusCode >= 300 {
		return Result{}, &groq.Error{Message: fmt.Sprintf("transcription endpoint returned %s", resp.Status)}
	}

	text := strings.TrimSpace(decoded.Text)
	if text == "" {
		return Result{}, ErrEmptyTranscript
	}
	return Result{Text: text}, nil
}
